package config

import (
	"errors"
	"os"
)

// Environment variable names for the text-generation service.
const (
	EnvEndpoint = "LLM_ENDPOINT"
	EnvModel    = "LLM_MODEL"
	EnvToken    = "LLM_TOKEN"
)

// Service identifies the text-generation service.
type Service struct {
	Endpoint string
	Model    string
	Token    string
}

// Env reads the service settings from the environment.
func Env() Service {
	return Service{
		Endpoint: os.Getenv(EnvEndpoint),
		Model:    os.Getenv(EnvModel),
		Token:    os.Getenv(EnvToken),
	}
}

// Merge fills the empty fields of s from the later services in order.
func (s Service) Merge(others ...Service) Service {
	for _, o := range others {
		if s.Endpoint == "" {
			s.Endpoint = o.Endpoint
		}
		if s.Model == "" {
			s.Model = o.Model
		}
		if s.Token == "" {
			s.Token = o.Token
		}
	}
	return s
}

// Check reports the first missing setting. The token is only required
// when needToken is set; local servers often accept anonymous requests.
func (s Service) Check(needToken bool) error {
	switch {
	case s.Endpoint == "":
		return errors.New(EnvEndpoint + " is not set")
	case s.Model == "":
		return errors.New(EnvModel + " is not set")
	case needToken && s.Token == "":
		return errors.New(EnvToken + " is not set")
	}
	return nil
}

package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "phoneagent", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Twilio: TwilioConfig{
			AccountSID:    "AC123",
			AuthToken:     "token",
			FromNumber:    "+15550001111",
			PublicBaseURL: "https://agent.example.com",
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "phone-agent"
	c.Auth.JWTAudience = "phone-agent-api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_TwilioRequired(t *testing.T) {
	c := validConfig()
	c.Twilio.FromNumber = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing TWILIO_FROM_NUMBER")
	}

	c = validConfig()
	c.Twilio.PublicBaseURL = "agent.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for non-http PUBLIC_BASE_URL")
	}
}

func TestValidate_CallTimingDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Calls.DecisionTimeout != 15*time.Second {
		t.Fatalf("decision timeout default = %v", c.Calls.DecisionTimeout)
	}
	if c.Calls.VerificationTimeout != 5*time.Minute {
		t.Fatalf("verification timeout default = %v", c.Calls.VerificationTimeout)
	}
	if c.Calls.InformationTimeout != 10*time.Minute {
		t.Fatalf("information timeout default = %v", c.Calls.InformationTimeout)
	}
	if c.Calls.MaxConcurrent != 10 {
		t.Fatalf("max concurrent default = %d", c.Calls.MaxConcurrent)
	}
}

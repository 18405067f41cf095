package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockflow/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	assert.Error(t, validateSecurityConfig(config.Config{AuthSecret: "short"}))
	assert.Error(t, validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		DatabaseURL:   "postgres://localhost/stockflow",
		AdminPassword: "admin",
	}))
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	assert.NoError(t, validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"}))
	assert.NoError(t, validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		DatabaseURL:   "postgres://localhost/stockflow",
		AdminPassword: "s3cure-owner-pass",
	}))
}

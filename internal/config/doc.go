// Package config provides configuration loading, merging, and validation
// for the go-todo-auth service.
//
// Configuration is assembled from multiple sources; for every field the
// first source with a non-zero value wins:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON config file
//  4. Built-in defaults
//
// The signing key and every TTL are injected from here into the services at
// startup; nothing in the auth core reads configuration on its own.
package config

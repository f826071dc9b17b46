// Package config loads settings from defaults, an optional .env file, an
// optional config file and FLASHDECK_* environment variables, then validates
// the result before any component is built.
package config

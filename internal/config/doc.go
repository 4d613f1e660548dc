// Package config loads the JSON configuration of the goat daemon and CLI.
// Relative file paths are resolved against the directory of the config
// file.
package config

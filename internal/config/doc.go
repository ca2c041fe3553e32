// Package config implements the settings, credential and voice catalog
// stores the speech coordinator reads from.
package config

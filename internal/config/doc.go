// Package config loads node configuration and operator credentials.
//
// Configuration is layered: compiled-in defaults, then an optional YAML file,
// then LORABRIDGE_* environment variables, then validation. Credentials (bot
// token and the two authorized chat identities) live in a separate JSON
// document that is read once at start and written once after provisioning.
package config

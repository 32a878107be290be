// Package telegram adapts the Telegram Bot API to the dispatcher's
// Messenger port using telego.
package telegram

// Package config loads, normalizes, and validates dubline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for every
// external credential (OPENAI_API_KEY, ELEVENLABS_API_KEY, LIPSYNC_API_KEY,
// R2_ACCESS_KEY_ID and friends). The Config type centralizes every knob the
// daemon and CLI need so service clients are built from one sanitized source.
package config

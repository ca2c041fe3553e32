// Package audio plays synthesized speech through oto/v3 and converts the
// formats cloud engines return (MP3, WAV, stereo, odd sample rates) into
// the 16-bit mono PCM the player consumes.
package audio

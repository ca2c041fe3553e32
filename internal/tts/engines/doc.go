// Package engines contains the synthesis backends behind tts.Engine.
//
// System speaks through a local synthesizer (espeak-ng, espeak or macOS say)
// and reports each word as it starts. The cloud engines (Google, Edge,
// Tencent and ElevenLabs) return finished 22050 Hz mono PCM, with word
// timings when the provider reports them. Factory builds a fresh engine per
// job and wraps cloud engines in the audio cache.
package engines

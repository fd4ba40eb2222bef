// Package audio defines the capture collaborator contract and the chunk type
// flowing through the pipeline.
//
// Capture itself is out of scope for the daemon; anything that can yield WAV
// bytes for a requested duration satisfies Capturer. The bundled synthetic
// capturer produces well-formed 16-bit PCM tones so the rest of the pipeline
// can run on hardware without a microphone.
package audio

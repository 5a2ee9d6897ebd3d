// Package audio converts between the host's stereo float samples and the
// mono 16-bit PCM the room transport carries, and slices PCM into fixed
// duration frames.
package audio

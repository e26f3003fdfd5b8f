// ABOUTME: Simulated speech recognition for the companion server
// ABOUTME: Occasionally answers an audio chunk with a word of a fixed sentence
package server

import (
	"math/rand/v2"
	"sync"
)

// DefaultReplyRate is the chance of answering any one chunk.
const DefaultReplyRate = 0.3

// simulatedWords are the possible replies. Together they read as one line.
var simulatedWords = []string{
	"Hello ",
	"world ",
	"this ",
	"is ",
	"a ",
	"test ",
	"of ",
	"real-time ",
	"speech ",
	"recognition.\n",
}

// Recognizer turns received audio into text to send back. An empty result
// means nothing is sent for that chunk.
type Recognizer interface {
	Recognize(chunk []byte) string
}

// SimulatedRecognizer returns a random word with probability Rate.
type SimulatedRecognizer struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedRecognizer creates a recognizer. seed 0 picks a random seed.
func NewSimulatedRecognizer(rate float64, seed uint64) *SimulatedRecognizer {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &SimulatedRecognizer{
		rate: rate,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Recognize ignores the audio content.
func (r *SimulatedRecognizer) Recognize(chunk []byte) string {
	if len(chunk) == 0 || r.rate <= 0 {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rng.Float64() >= r.rate {
		return ""
	}
	return simulatedWords[r.rng.IntN(len(simulatedWords))]
}

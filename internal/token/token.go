// Package token generates redemption tokens: the short codes beneficiaries
// present at the venue to mark a booking used.
package token

import (
	"crypto/rand"
	"fmt"
)

// Alphabet leaves out 0/1/I/L/O so tokens survive being read out loud or
// copied by hand.
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const Length = 6

// New draws a fresh token. Uniqueness across bookings is the caller's job:
// the generator is collision-oblivious and callers re-draw on conflict.
func New() (string, error) {
	buf := make([]byte, Length)
	out := make([]byte, Length)
	for filled := 0; filled < Length; {
		if _, err := rand.Read(buf[:Length-filled]); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf[:Length-filled] {
			// Rejection sampling keeps the distribution uniform: 248 is the
			// largest multiple of len(Alphabet) below 256.
			if int(b) >= 248 {
				continue
			}
			out[filled] = Alphabet[int(b)%len(Alphabet)]
			filled++
		}
	}
	return string(out), nil
}

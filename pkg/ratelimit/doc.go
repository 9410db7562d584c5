// Package ratelimit paces requests sent to the platform.
//
// The token bucket hands out a fixed number of tokens per period and refills
// all of them at once when the period elapses. Every request issued by the
// platform client, including file transfers, takes one token.
package ratelimit

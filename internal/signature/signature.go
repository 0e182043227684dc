/*
Copyright 2024 Haven Payments Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package signature computes and verifies the shared-secret digests payment
// providers attach to their requests. Each provider flow signs over a
// different canonical form of the payload, so the mode is fixed per flow, not
// chosen per call.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// Mode selects the canonicalization recipe a provider flow signs with.
type Mode int

const (
	// SortedJSON re-encodes the payload with keys sorted lexicographically,
	// base64-encodes it and takes an MD5 digest of base64+secret.
	SortedJSON Mode = iota
	// RawJSON keeps the payload bytes in their original key order (compacted),
	// then applies the same base64+secret+MD5 recipe.
	RawJSON
	// HMACSHA256 is a keyed hash over the raw request bytes, hex encoded.
	HMACSHA256
)

// ErrFieldNotFound is returned by StripField when the payload carries no
// top-level member with the requested name.
var ErrFieldNotFound = errors.New("field not found in payload")

// Sign produces the digest for payload under secret using the given mode.
// For SortedJSON and RawJSON the payload must be a JSON object; the caller is
// responsible for stripping an embedded signature field first.
func Sign(payload []byte, secret string, mode Mode) (string, error) {
	switch mode {
	case SortedJSON:
		canonical, err := sortKeys(payload)
		if err != nil {
			return "", err
		}
		return keyedDigest(canonical, secret), nil
	case RawJSON:
		compact := &bytes.Buffer{}
		if err := json.Compact(compact, payload); err != nil {
			return "", err
		}
		return keyedDigest(compact.Bytes(), secret), nil
	case HMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		return hex.EncodeToString(mac.Sum(nil)), nil
	default:
		return "", errors.New("unknown signature mode")
	}
}

// Verify recomputes the digest for payload and compares it to the received
// value in constant time. A mismatch is a result, not an error; the error
// return only covers malformed payloads.
func Verify(payload []byte, received, secret string, mode Mode) (bool, error) {
	expected, err := Sign(payload, secret, mode)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(received))), nil
}

// keyedDigest is the base64+secret MD5 recipe shared by the JSON modes.
func keyedDigest(canonical []byte, secret string) string {
	encoded := base64.StdEncoding.EncodeToString(canonical)
	sum := md5.Sum([]byte(encoded + secret))
	return hex.EncodeToString(sum[:])
}

// sortKeys re-encodes a JSON document with object keys sorted
// lexicographically at every level. Number literals pass through unchanged.
func sortKeys(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// StripField removes the named top-level member from a JSON object while
// leaving every other byte untouched, and returns the member's value with
// string quoting removed. Byte preservation matters: the RawJSON mode digests
// the payload in its original key order, so the field cannot be removed by a
// decode/re-encode round trip.
func StripField(raw []byte, field string) ([]byte, string, error) {
	i := skipSpace(raw, 0)
	if i >= len(raw) || raw[i] != '{' {
		return nil, "", errors.New("payload is not a JSON object")
	}

	depth := 0
	for i = 0; i < len(raw); i++ {
		switch raw[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case '"':
			keyStart := i
			key, end, err := scanString(raw, i)
			if err != nil {
				return nil, "", err
			}
			i = end - 1
			if depth != 1 {
				continue
			}
			colon := skipSpace(raw, end)
			if colon >= len(raw) || raw[colon] != ':' || key != field {
				continue
			}

			valStart := skipSpace(raw, colon+1)
			valEnd, err := scanValue(raw, valStart)
			if err != nil {
				return nil, "", err
			}
			value, err := decodeValue(raw[valStart:valEnd])
			if err != nil {
				return nil, "", err
			}

			// Cut the member plus exactly one adjacent comma.
			cutStart, cutEnd := keyStart, valEnd
			after := skipSpace(raw, valEnd)
			if after < len(raw) && raw[after] == ',' {
				cutEnd = after + 1
			} else {
				before := keyStart - 1
				for before >= 0 && isSpace(raw[before]) {
					before--
				}
				if before >= 0 && raw[before] == ',' {
					cutStart = before
				}
			}

			stripped := make([]byte, 0, len(raw))
			stripped = append(stripped, raw[:cutStart]...)
			stripped = append(stripped, raw[cutEnd:]...)
			return stripped, value, nil
		}
	}
	return nil, "", ErrFieldNotFound
}

func decodeValue(raw []byte) (string, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// scanString consumes a JSON string starting at the opening quote and returns
// its decoded value and the index just past the closing quote.
func scanString(raw []byte, start int) (string, int, error) {
	for i := start + 1; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '"':
			var s string
			if err := json.Unmarshal(raw[start:i+1], &s); err != nil {
				return "", 0, err
			}
			return s, i + 1, nil
		}
	}
	return "", 0, errors.New("unterminated string in payload")
}

// scanValue returns the index just past the JSON value starting at start.
func scanValue(raw []byte, start int) (int, error) {
	if start >= len(raw) {
		return 0, errors.New("truncated payload")
	}
	switch raw[start] {
	case '"':
		_, end, err := scanString(raw, start)
		return end, err
	case '{', '[':
		depth := 0
		for i := start; i < len(raw); i++ {
			switch raw[i] {
			case '"':
				_, end, err := scanString(raw, i)
				if err != nil {
					return 0, err
				}
				i = end - 1
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return i + 1, nil
				}
			}
		}
		return 0, errors.New("unterminated value in payload")
	default:
		i := start
		for i < len(raw) && raw[i] != ',' && raw[i] != '}' && raw[i] != ']' && !isSpace(raw[i]) {
			i++
		}
		return i, nil
	}
}

func skipSpace(raw []byte, i int) int {
	for i < len(raw) && isSpace(raw[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

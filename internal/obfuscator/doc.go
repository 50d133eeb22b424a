// Package obfuscator disguises file paths before they leave the process.
//
// Every path segment is replaced by a keyed token: the first five bytes of
// HMAC-SHA256(key, segment), written as eight lowercase base32 characters.
// The file name keeps its extension, so "src/api/handler.py" becomes
// something like "q3xk7mza/fh2a9tbc/m4rdw2ie.py". The same segment always
// maps to the same token under one key, so directory structure is preserved
// while names are not.
//
// Tokens cannot be inverted. Reversal relies on the mapping file written by
// Commit, which records original paths next to their tokens together with a
// fingerprint of the key (never the key itself). Losing either the key or
// the mapping file makes previously emitted paths permanently unreadable;
// there is no recovery path. Keep both with the index they describe.
package obfuscator

// Package password implements argon2id credential hashing in PHC string
// format, plus work-factor upgrade detection for hashes derived under
// older parameters.
package password

package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNanoIDWithPrefix returns "<prefix>_<random>" using a lowercase alphanumeric alphabet
func GenerateNanoIDWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(idAlphabet, size)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

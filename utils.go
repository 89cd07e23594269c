package main

import (
	"os"
	"path/filepath"
	"slices"
)

var osSeparator = string(os.PathSeparator)

func StandardiseDirPath(cwd string) string {
	if string(cwd[len(cwd)-1]) == osSeparator {
		return cwd
	} else {
		return cwd + osSeparator
	}
}

func ResolveAbsoluteCwd(cwd string) string {
	if filepath.IsAbs(cwd) {
		return StandardiseDirPath(cwd)
	} else {
		binaryExecDir, _ := os.Getwd()
		return StandardiseDirPath(filepath.Join(binaryExecDir, cwd))
	}
}

func isValidIdentifierChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '$'
}

type KV[K any, V any] struct {
	k K
	v V
}

func GetSortedMap[K string | int, V any](m map[K]V) []KV[K, V] {
	result := make([]KV[K, V], 0, len(m))

	for k, v := range m {
		result = append(result, KV[K, V]{k, v})
	}

	slices.SortFunc(result, func(a KV[K, V], b KV[K, V]) int {

		if a.k > b.k {
			return 1
		}
		if a.k < b.k {
			return -1
		}
		return 0
	})

	return result
}

func Abs(val int) int {
	if val >= 0 {
		return val
	}
	return -val
}

func PadRight(text string, char byte, length int) string {
	prefixLen := Abs(length - len(text))
	prefix := make([]byte, 0, prefixLen)
	for range prefixLen {
		prefix = append(prefix, char)
	}

	return text + string(prefix)
}

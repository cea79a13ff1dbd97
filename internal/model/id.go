package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Namespace used for deterministic (v5) uuid derivation. Fixed so that the
// same inputs always produce the same node identity across runs and hosts.
var idNamespace = uuid.MustParse("8f3c1d6a-4b2e-4f90-9c35-7d1a2e6b0c44")

// Hash16 returns the first 16 hex characters of the SHA-256 digest of data.
// This is the canonical content hash used on every node property that ends
// in "_hash" or "Hash".
func Hash16(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// Hash16String is Hash16 over a string.
func Hash16String(s string) string {
	return Hash16([]byte(s))
}

// FileUUID derives the uuid of a File node from the owning project id and
// the file's project-relative path. Pure function: the same (project, path)
// always yields the same uuid.
func FileUUID(projectID, relPath string) string {
	return uuid.NewSHA1(idNamespace, []byte(projectID+"\x00"+relPath)).String()
}

// DirectoryUUID derives the uuid of a Directory node from the owning
// project id and the directory's project-relative path.
func DirectoryUUID(projectID, relPath string) string {
	return uuid.NewSHA1(idNamespace, []byte(projectID+"\x00dir\x00"+relPath)).String()
}

// ScopeUUID derives the uuid of a Scope node from its defining file, name,
// scope type and a digest of its signature. Line numbers are deliberately
// not part of the identity so that moving a construct within a file keeps
// its uuid, embeddings and inbound edges.
func ScopeUUID(fileUUID, name, scopeType, signature string) string {
	sig := SignatureHash(signature)
	key := strings.Join([]string{fileUUID, name, scopeType, sig}, "\x00")
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// ChildUUID derives the uuid of a non-scope child node (section, code block,
// data section, css variable, ...) from its file and a stable business key.
func ChildUUID(fileUUID, label, key string) string {
	return uuid.NewSHA1(idNamespace, []byte(fileUUID+"\x00"+label+"\x00"+key)).String()
}

// URLUUID derives the uuid of a shared ExternalURL node from the url alone:
// every file linking to the same url points at the same node.
func URLUUID(url string) string {
	return uuid.NewSHA1(idNamespace, []byte("url\x00"+url)).String()
}

// LibraryUUID derives the uuid of a shared ExternalLibrary node from the
// package name.
func LibraryUUID(name string) string {
	return uuid.NewSHA1(idNamespace, []byte("library\x00"+name)).String()
}

// SignatureHash digests a scope signature with xxhash. Fast, non
// cryptographic; collisions only matter within a single (file, name, type)
// group.
func SignatureHash(signature string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(signature))
}

// EntityUUID builds the uuid of an extracted named entity. Entities are
// global per project: the same normalized name and type always map to the
// same node regardless of which file mentioned them.
func EntityUUID(entityType, name string) string {
	return "entity:" + strings.ToLower(entityType) + ":" + NormalizeEntityName(name)
}

// ChunkUUID builds the uuid of an EmbeddingChunk child.
func ChunkUUID(parentUUID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", parentUUID, index)
}

// NormalizeEntityName lowercases and collapses whitespace for entity
// identity matching.
func NormalizeEntityName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

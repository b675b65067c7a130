package model

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/rushteam/shoprec/core"
)

// FormatVersion 是快照编码格式版本，不兼容的改动需递增。
const FormatVersion = 1

// envelope 是存储中的外层结构：gob(Snapshot) 经 gzip 压缩，附带原始数据的 SHA-256。
type envelope struct {
	Version  int
	SavedAt  time.Time
	Checksum string
	Data     []byte
}

// Encode 把快照编码为单个 blob。
func Encode(s *Snapshot) ([]byte, error) {
	if !s.Trained() {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: snapshot has no trained model")
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(s); err != nil {
		return nil, persistenceError("encode snapshot", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, persistenceError("compress snapshot", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, persistenceError("compress snapshot", err)
	}

	env := envelope{
		Version:  FormatVersion,
		SavedAt:  time.Now().UTC(),
		Checksum: hex.EncodeToString(sum[:]),
		Data:     compressed.Bytes(),
	}
	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(env); err != nil {
		return nil, persistenceError("encode envelope", err)
	}
	return out.Bytes(), nil
}

// Decode 校验版本与校验和后还原快照。
func Decode(data []byte) (*Snapshot, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, persistenceError("decode envelope", err)
	}
	if env.Version != FormatVersion {
		return nil, persistenceError(fmt.Sprintf("unsupported format version %d", env.Version), nil)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(env.Data))
	if err != nil {
		return nil, persistenceError("decompress snapshot", err)
	}
	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, persistenceError("decompress snapshot", err)
	}
	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, persistenceError("checksum mismatch", nil)
	}

	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&s); err != nil {
		return nil, persistenceError("decode snapshot", err)
	}
	if !s.Trained() {
		return nil, persistenceError("snapshot has no trained model", nil)
	}
	return &s, nil
}

func persistenceError(msg string, err error) error {
	return core.WrapDomainError(core.ModuleModel, core.ErrorCodePersistence, "model: "+msg, err)
}

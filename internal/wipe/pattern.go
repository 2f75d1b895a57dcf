package wipe

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/chacha20"
)

// PatternKind вид данных прохода
type PatternKind string

const (
	PatternZero   PatternKind = "zero"
	PatternOnes   PatternKind = "ones"
	PatternByte   PatternKind = "byte"
	PatternRandom PatternKind = "random"
)

// chachaBlock - размер блока ключевого потока ChaCha20
const chachaBlock = 64

// Pattern описывает содержимое одного прохода.
// Для random содержимое любого смещения восстанавливается по Key и Nonce,
// поэтому верификатору не нужно хранить записанные данные.
type Pattern struct {
	Kind  PatternKind
	Value byte
	Key   [chacha20.KeySize]byte
	Nonce [chacha20.NonceSize]byte
}

// ParsePattern разбирает имя паттерна: zero, ones, random или byte:0xNN
func ParsePattern(name string) (Pattern, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "zero", "zeros", "zeroes":
		return Pattern{Kind: PatternZero}, nil
	case "ones", "ff":
		return Pattern{Kind: PatternOnes, Value: 0xFF}, nil
	case "random":
		return Pattern{Kind: PatternRandom}, nil
	}
	if raw, ok := strings.CutPrefix(name, "byte:"); ok {
		v, err := strconv.ParseUint(raw, 0, 8)
		if err != nil {
			return Pattern{}, errors.Wrapf(err, "invalid byte pattern %q", name)
		}
		return Pattern{Kind: PatternByte, Value: byte(v)}, nil
	}
	return Pattern{}, errors.Newf("unknown pattern %q", name)
}

// ParsePatterns разбирает список имён
func ParsePatterns(names []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(names))
	for _, n := range names {
		p, err := ParsePattern(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Name возвращает каноническое имя паттерна
func (p Pattern) Name() string {
	if p.Kind == PatternByte {
		return fmt.Sprintf("byte:0x%02x", p.Value)
	}
	return string(p.Kind)
}

// keyed возвращает копию random-паттерна с ключом задания и номером прохода в nonce
func (p Pattern) keyed(key [chacha20.KeySize]byte, pass int) Pattern {
	if p.Kind != PatternRandom {
		return p
	}
	p.Key = key
	binary.LittleEndian.PutUint32(p.Nonce[:4], uint32(pass))
	return p
}

// Fill заполняет buf содержимым паттерна для диапазона [offset, offset+len(buf))
func (p Pattern) Fill(buf []byte, offset uint64) error {
	switch p.Kind {
	case PatternZero:
		clear(buf)
		return nil
	case PatternOnes, PatternByte:
		v := p.Value
		if p.Kind == PatternOnes {
			v = 0xFF
		}
		for i := range buf {
			buf[i] = v
		}
		return nil
	case PatternRandom:
		return p.fillKeystream(buf, offset)
	}
	return errors.Newf("unknown pattern kind %q", p.Kind)
}

func (p Pattern) fillKeystream(buf []byte, offset uint64) error {
	block := offset / chachaBlock
	end := offset + uint64(len(buf))
	if (end+chachaBlock-1)/chachaBlock > 1<<32 {
		return errors.Newf("random pattern offset %d exceeds keystream range", offset)
	}
	c, err := chacha20.NewUnauthenticatedCipher(p.Key[:], p.Nonce[:])
	if err != nil {
		return err
	}
	c.SetCounter(uint32(block))

	// невыровненное смещение: пропускаем начало блока
	if skip := int(offset % chachaBlock); skip > 0 {
		var scratch [chachaBlock]byte
		c.XORKeyStream(scratch[:skip], scratch[:skip])
	}
	clear(buf)
	c.XORKeyStream(buf, buf)
	return nil
}

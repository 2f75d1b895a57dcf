package wipe

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math/rand/v2"
	"sort"

	"datasanitizer/internal/reason"
)

const (
	verifyReadSize  = 1 << 20
	sampleBlockSize = 64 << 10
)

// Verifier сверяет содержимое тома с паттерном последнего прохода
type Verifier struct {
	opener  Opener
	mode    VerifyMode
	samples int
}

// NewVerifier создаёт верификатор; samples - число равномерных и
// псевдослучайных блоков в режиме sampled (каждого вида)
func NewVerifier(opener Opener, mode VerifyMode, samples int) *Verifier {
	if mode == "" {
		mode = VerifyFull
	}
	return &Verifier{opener: opener, mode: mode, samples: samples}
}

// Verify открывает новый дескриптор чтения, сбрасывает кэш диапазона и сравнивает [0, bound)
// с регенерированным паттерном. Ошибка чтения - VerificationFailed.
func (v *Verifier) Verify(ctx context.Context, identifier string, bound uint64, pattern Pattern) (Outcome, error) {
	out := Outcome{Mode: v.mode, MismatchOffset: -1}

	dev, err := v.opener.OpenRead(identifier)
	if err != nil {
		return out, reason.Wrap(err, reason.VerificationFailed, "open %s for verification", identifier)
	}
	defer dev.Close()

	if err := dev.DropCache(0, int64(bound)); err != nil {
		return out, reason.Wrap(err, reason.VerificationFailed, "drop page cache of %s", identifier)
	}

	var ranges []span
	if v.mode == VerifySampled {
		ranges = sampleSpans(bound, v.samples, pattern)
		out.Samples = len(ranges)
	} else {
		ranges = []span{{0, bound}}
	}

	got := GetBuffer(verifyReadSize)
	defer PutBuffer(got)
	want := GetBuffer(verifyReadSize)
	defer PutBuffer(want)

	for _, r := range ranges {
		for off := r.off; off < r.off+r.length; {
			if err := ctx.Err(); err != nil {
				return out, reason.Wrap(err, reason.Cancelled, "verification of %s cancelled", identifier)
			}
			n := uint64(verifyReadSize)
			if rest := r.off + r.length - off; rest < n {
				n = rest
			}
			if err := readFullAt(dev, got[:n], int64(off)); err != nil {
				return out, reason.Wrap(err, reason.VerificationFailed, "read %s at %d", identifier, off)
			}
			if err := pattern.Fill(want[:n], off); err != nil {
				return out, reason.Wrap(err, reason.Internal, "regenerate pattern")
			}
			out.BytesChecked += n
			if i := firstDiff(got[:n], want[:n]); i >= 0 {
				out.MismatchOffset = int64(off) + int64(i)
				return out, nil
			}
			off += n
		}
	}

	out.Matched = true
	return out, nil
}

type span struct {
	off    uint64
	length uint64
}

// sampleSpans: первый и последний блок, samples равномерно распределённых
// и samples псевдослучайных, выведенных из ключа паттерна
func sampleSpans(bound uint64, samples int, pattern Pattern) []span {
	block := uint64(sampleBlockSize)
	if bound <= block*2 {
		return []span{{0, bound}}
	}
	last := bound - block
	offsets := map[uint64]bool{0: true, last: true}

	for i := 1; i <= samples; i++ {
		off := last / uint64(samples+1) * uint64(i)
		offsets[off-off%alignment] = true
	}

	var seed [32]byte
	copy(seed[:], pattern.Key[:])
	binary.LittleEndian.PutUint64(seed[24:], bound^uint64(pattern.Value))
	rng := rand.New(rand.NewChaCha8(seed))
	slots := last / alignment
	for i := 0; i < samples; i++ {
		offsets[rng.Uint64N(slots+1)*alignment] = true
	}

	sorted := make([]uint64, 0, len(offsets))
	for off := range offsets {
		sorted = append(sorted, off)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// перекрывающиеся блоки сливаются
	var out []span
	for _, off := range sorted {
		end := off + block
		if n := len(out); n > 0 && off <= out[n-1].off+out[n-1].length {
			if end > out[n-1].off+out[n-1].length {
				out[n-1].length = end - out[n-1].off
			}
			continue
		}
		out = append(out, span{off, block})
	}
	return out
}

func readFullAt(dev Device, buf []byte, off int64) error {
	for len(buf) > 0 {
		n, err := dev.ReadAt(buf, off)
		buf = buf[n:]
		off += int64(n)
		if err != nil {
			if err == io.EOF && len(buf) == 0 {
				return nil
			}
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n == 0 {
			return io.ErrNoProgress
		}
	}
	return nil
}

func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return len(a)
}

package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler passes keep out of every consecutive calls. every <= 0 passes all.
type sampler struct {
	keep  atomic.Int64
	every atomic.Int64
	seq   atomic.Uint64
}

func (s *sampler) set(keep, every int64) {
	if keep > every {
		keep = every
	}
	s.keep.Store(keep)
	s.every.Store(every)
	s.seq.Store(0)
}

func (s *sampler) allow() bool {
	every := s.every.Load()
	if every <= 0 {
		return true
	}
	n := s.seq.Add(1) - 1
	return int64(n%uint64(every)) < s.keep.Load()
}

const (
	defaultSampleKeep  = 1
	defaultSampleEvery = 50
)

// parseSample reads "keep/every", a bare "every" meaning 1/every, or one of
// "0", "off", "all" which disable sampling. Anything unparsable yields the
// default ratio.
func parseSample(spec string) (keep, every int64) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "":
		return defaultSampleKeep, defaultSampleEvery
	case "0", "off", "all":
		return 0, 0
	}
	k, e, found := strings.Cut(spec, "/")
	if !found {
		k, e = "1", spec
	}
	keep, err1 := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
	every, err2 := strconv.ParseInt(strings.TrimSpace(e), 10, 64)
	if err1 != nil || err2 != nil || keep <= 0 || every <= 0 {
		return defaultSampleKeep, defaultSampleEvery
	}
	return keep, every
}

package review

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	logger "github.com/sirupsen/logrus"
)

var setLoader sync.Once

// TiktokenTokenizer counts BPE tokens with the encoding of an OpenAI model.
// Lines are encoded one at a time and summed, so splitting text at line
// boundaries never changes the total.
type TiktokenTokenizer struct {
	enc      *tiktoken.Tiktoken
	encoding string
}

// NewTiktokenTokenizer returns a tokenizer for model. Models without a known
// encoding use cl100k_base. Dictionaries are loaded from embedded files.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	setLoader.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })

	name := encodingName(model)
	enc, err := tiktoken.GetEncoding(name)
	if err != nil && name != tiktoken.MODEL_CL100K_BASE {
		logger.WithError(err).Debugf("tokenizer: %s unavailable for %s, using %s", name, model, tiktoken.MODEL_CL100K_BASE)
		name = tiktoken.MODEL_CL100K_BASE
		enc, err = tiktoken.GetEncoding(name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", name, err)
	}
	return &TiktokenTokenizer{enc: enc, encoding: name}, nil
}

// Encoding returns the BPE encoding name in use.
func (t *TiktokenTokenizer) Encoding() string { return t.encoding }

func (t *TiktokenTokenizer) Count(text string) int {
	n := 0
	for _, line := range splitLines(text) {
		n += len(t.enc.EncodeOrdinary(line))
	}
	return n
}

// TokenizerFor returns the tiktoken tokenizer for model, or the byte
// estimate when no encoding can be loaded.
func TokenizerFor(model string) Tokenizer {
	t, err := NewTiktokenTokenizer(model)
	if err != nil {
		logger.WithError(err).Warn("Falling back to estimated token counts")
		return EstimateTokenizer{}
	}
	return t
}

func encodingName(model string) string {
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name
	}
	for prefix, name := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) {
			return name
		}
	}
	return tiktoken.MODEL_CL100K_BASE
}

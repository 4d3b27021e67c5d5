package compiler

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/sapling/internal/logging"
	"github.com/aretw0/sapling/pkg/domain"
)

// Line prefixes of the pre-order text model format.
const (
	PrefixFeature   = "Feature:"
	PrefixThreshold = "Threshold:"
)

// DecodeError describes why a model description was rejected.
// It always unwraps to domain.ErrMalformedModel.
type DecodeError struct {
	Line   int // 1-based line number, 0 when not tied to a line
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", domain.ErrMalformedModel, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", domain.ErrMalformedModel, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return domain.ErrMalformedModel
}

// Parser converts the pre-order text model format into a Tree.
//
//	Feature: <name>
//	Threshold: <float>
//	<left subtree>
//	<right subtree>
//
// Any other non-blank line is a leaf label. Blank lines are ignored, and so
// is anything after the root subtree is complete.
type Parser struct {
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger reports ignored trailing content to logger.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a new parser instance.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode parses a text model.
func Decode(text string, opts ...ParserOption) (*domain.Tree, error) {
	return NewParser(opts...).Parse([]byte(text))
}

// pendingSplit is a split whose header has been read but whose children are still being decoded.
type pendingSplit struct {
	feature   string
	threshold float64
	line      int
	left      *domain.Node
}

// Parse decodes data in a single left-to-right scan.
// Subtrees are assembled bottom-up on an explicit stack, so arbitrarily deep
// (skewed) trees do not grow the goroutine stack.
func (p *Parser) Parse(data []byte) (*domain.Tree, error) {
	lines := strings.Split(string(data), "\n")
	cursor := 0

	// next returns the next non-blank trimmed line and its 1-based number.
	next := func() (string, int, bool) {
		for cursor < len(lines) {
			line := strings.TrimSpace(lines[cursor])
			cursor++
			if line != "" {
				return line, cursor, true
			}
		}
		return "", 0, false
	}

	var (
		pending []*pendingSplit
		root    *domain.Node
	)

	for {
		line, lineNo, ok := next()
		if !ok {
			break
		}
		if root != nil {
			ignored := 1
			for _, _, more := next(); more; _, _, more = next() {
				ignored++
			}
			p.logger.Warn("ignoring content after the root subtree", "line", lineNo, "lines", ignored)
			break
		}

		if strings.HasPrefix(line, PrefixFeature) {
			split, err := readSplitHeader(line, lineNo, next)
			if err != nil {
				return nil, err
			}
			pending = append(pending, split)
			continue
		}

		node, err := domain.NewLeaf(line)
		if err != nil {
			return nil, &DecodeError{Line: lineNo, Reason: err.Error()}
		}

		// Attach the finished subtree to the innermost open split, closing
		// every split that now has both children.
		for {
			if len(pending) == 0 {
				root = node
				break
			}
			top := pending[len(pending)-1]
			if top.left == nil {
				top.left = node
				break
			}
			closed, err := domain.NewSplit(top.feature, top.threshold, top.left, node)
			if err != nil {
				return nil, &DecodeError{Line: top.line, Reason: err.Error()}
			}
			pending = pending[:len(pending)-1]
			node = closed
		}
	}

	if root == nil {
		if len(pending) > 0 {
			open := pending[len(pending)-1]
			return nil, &DecodeError{
				Line:   open.line,
				Reason: fmt.Sprintf("input ended before split on %q received both children", open.feature),
			}
		}
		return nil, &DecodeError{Reason: "empty model"}
	}

	return domain.NewTree(root)
}

func readSplitHeader(line string, lineNo int, next func() (string, int, bool)) (*pendingSplit, error) {
	feature := strings.TrimSpace(strings.TrimPrefix(line, PrefixFeature))
	if feature == "" {
		return nil, &DecodeError{Line: lineNo, Reason: "feature name is empty"}
	}

	thresholdLine, thresholdNo, ok := next()
	if !ok || !strings.HasPrefix(thresholdLine, PrefixThreshold) {
		return nil, &DecodeError{
			Line:   lineNo,
			Reason: fmt.Sprintf("feature %q has no matching %s line", feature, PrefixThreshold),
		}
	}

	raw := strings.TrimSpace(strings.TrimPrefix(thresholdLine, PrefixThreshold))
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, &DecodeError{
			Line:   thresholdNo,
			Reason: fmt.Sprintf("invalid threshold %q for feature %q", raw, feature),
		}
	}

	return &pendingSplit{feature: feature, threshold: threshold, line: lineNo}, nil
}

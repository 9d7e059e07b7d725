// Package command parses chat messages into a closed set of commands and
// executes them against the watch list.
//
// Parse is pure; Processor.Handle dispatches and always returns exactly one
// non-empty reply.
package command

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/1308774130/StockSentinel/internal/quote"
	"github.com/1308774130/StockSentinel/internal/watchlist"
)

// Kind is the command kind selected by the first token.
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindAdd
	KindRemove
	KindList
	KindConfig
	KindStatus
	KindSet
)

var kindNames = [...]string{"unknown", "help", "add", "remove", "list", "config", "status", "set"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var (
	ErrMissingArgument = errors.New("command: missing argument")
	ErrInvalidNumber   = errors.New("command: invalid number")
)

// Command is one parsed chat message. Err is set when the kind was
// recognized but its argument was not usable.
type Command struct {
	Kind  Kind
	Name  string // first token as typed, lowercased
	Code  string // add/remove: normalized 6-digit code
	Field watchlist.Field
	Value float64
	Arg   string // raw argument
	Err   error
}

// setAliases maps setting commands to the field they change.
var setAliases = map[string]watchlist.Field{
	"改间隔": watchlist.FieldPollInterval,
	"间隔":  watchlist.FieldPollInterval,
	"改超买": watchlist.FieldRSIOverbought,
	"超买":  watchlist.FieldRSIOverbought,
	"改超卖": watchlist.FieldRSIOversold,
	"超卖":  watchlist.FieldRSIOversold,
	"改涨跌": watchlist.FieldPctChange,
	"涨跌":  watchlist.FieldPctChange,
	"改量比": watchlist.FieldVolumeRatio,
	"量比":  watchlist.FieldVolumeRatio,
	"改冷却": watchlist.FieldCooldown,
	"冷却":  watchlist.FieldCooldown,
}

var mentionRe = regexp.MustCompile(`@_user_\d+`)

// Parse classifies text. Leading mentions and a "/" prefix are stripped;
// matching is case and whitespace tolerant. Empty text asks for help.
func Parse(text string) Command {
	text = strings.TrimSpace(mentionRe.ReplaceAllString(text, " "))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return Command{Kind: KindHelp}
	}

	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	// Telegram group commands arrive as /add@BotName.
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	cmd := Command{Name: name}
	if len(parts) > 1 {
		cmd.Arg = parts[1]
	}

	switch name {
	case "help", "帮助", "?", "？", "start":
		cmd.Kind = KindHelp
	case "list":
		cmd.Kind = KindList
	case "config":
		cmd.Kind = KindConfig
	case "status":
		cmd.Kind = KindStatus
	case "add", "remove":
		cmd.Kind = KindAdd
		if name == "remove" {
			cmd.Kind = KindRemove
		}
		if cmd.Arg == "" {
			cmd.Err = ErrMissingArgument
			break
		}
		cmd.Code, cmd.Err = quote.NormalizeCode(cmd.Arg)
	default:
		field, ok := setAliases[name]
		if !ok {
			cmd.Kind = KindUnknown
			break
		}
		cmd.Kind = KindSet
		cmd.Field = field
		if cmd.Arg == "" {
			cmd.Err = ErrMissingArgument
			break
		}
		v, err := strconv.ParseFloat(cmd.Arg, 64)
		if err != nil {
			cmd.Err = ErrInvalidNumber
			break
		}
		cmd.Value = v
	}
	return cmd
}

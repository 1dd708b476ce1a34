package reply

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum similarity for a token to count as a keyword
// hit when no exact substring matched.
const fuzzyThreshold = 0.84

// Matcher scores the similarity of a spoken token against a keyword in the
// range [0, 1]. It is replaceable so the matching strategy can be swapped
// without touching the command table.
type Matcher func(token, keyword string) float64

// DefaultMatcher combines phonetic equality (Double Metaphone) with
// Jaro-Winkler string similarity. Phonetic hits score highest so that
// recognition slips like "what thyme is it" still resolve.
func DefaultMatcher(token, keyword string) float64 {
	score := matchr.JaroWinkler(token, keyword, false)
	tp, ts := matchr.DoubleMetaphone(token)
	kp, ks := matchr.DoubleMetaphone(keyword)
	if tp != "" && (tp == kp || tp == ks || ts == kp) {
		if score < 0.95 {
			score = 0.95
		}
	}
	return score
}

// keyword is one trigger phrase together with the language its answer should
// be phrased in.
type keyword struct {
	text string
	lang string
}

// intent is one built-in command.
type intent struct {
	name     string
	keywords []keyword
	handle   func(c *Commands, lang string) (string, error)
}

// Commands answers simple utterances locally without a language model:
// current time and date, working directory, file counts, the most recently
// changed file, and disk usage.
type Commands struct {
	intents []intent
	matcher Matcher
	root    string
	now     func() time.Time
}

// CommandsOption is a functional option for Commands.
type CommandsOption func(*Commands)

// WithMatcher replaces the fuzzy matching strategy.
func WithMatcher(m Matcher) CommandsOption {
	return func(c *Commands) { c.matcher = m }
}

// WithRoot sets the directory the filesystem commands inspect. Defaults to
// the process working directory.
func WithRoot(dir string) CommandsOption {
	return func(c *Commands) { c.root = dir }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) CommandsOption {
	return func(c *Commands) { c.now = now }
}

// NewCommands creates the built-in command table.
func NewCommands(opts ...CommandsOption) *Commands {
	c := &Commands{
		matcher: DefaultMatcher,
		now:     time.Now,
		intents: builtinIntents(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Respond answers the utterance when it matches a built-in command. The
// second return is false when no command matched or the handler failed, so
// the caller can fall through to the language model.
func (c *Commands) Respond(utterance string) (string, bool) {
	in, lang, ok := c.match(utterance)
	if !ok {
		return "", false
	}
	answer, err := in.handle(c, lang)
	if err != nil {
		return "", false
	}
	return answer, true
}

// match finds the best intent for the utterance. Exact substring hits win
// outright; otherwise each latin token is fuzzy-scored against every keyword
// and the highest score above the threshold wins. Ties keep the first intent
// in table order.
func (c *Commands) match(utterance string) (intent, string, bool) {
	lowered := strings.ToLower(utterance)

	for _, in := range c.intents {
		for _, kw := range in.keywords {
			if strings.Contains(lowered, kw.text) {
				return in, kw.lang, true
			}
		}
	}

	tokens := strings.Fields(lowered)
	var (
		best      intent
		bestLang  string
		bestScore float64
	)
	for _, in := range c.intents {
		for _, kw := range in.keywords {
			// Token scoring only makes sense for single-word English
			// keywords; phrases are handled by the substring pass above.
			if kw.lang != "en" || strings.Contains(kw.text, " ") {
				continue
			}
			for _, tok := range tokens {
				if s := c.matcher(tok, kw.text); s > bestScore {
					best, bestLang, bestScore = in, kw.lang, s
				}
			}
		}
	}
	if bestScore >= fuzzyThreshold {
		return best, bestLang, true
	}
	return intent{}, "", false
}

func builtinIntents() []intent {
	return []intent{
		{
			name: "time",
			keywords: []keyword{
				{"what time", "en"}, {"current time", "en"}, {"time", "en"},
				{"时间", "zh"}, {"几点", "zh"},
			},
			handle: (*Commands).tellTime,
		},
		{
			name: "date",
			keywords: []keyword{
				{"what date", "en"}, {"today's date", "en"}, {"date", "en"}, {"today", "en"},
				{"日期", "zh"}, {"几号", "zh"},
			},
			handle: (*Commands).tellDate,
		},
		{
			name: "cwd",
			keywords: []keyword{
				{"current directory", "en"}, {"working directory", "en"}, {"which folder", "en"},
				{"当前目录", "zh"}, {"哪个目录", "zh"},
			},
			handle: (*Commands).tellWorkingDir,
		},
		{
			name: "filecount",
			keywords: []keyword{
				{"how many files", "en"}, {"file count", "en"}, {"number of files", "en"},
				{"多少文件", "zh"}, {"文件数量", "zh"},
			},
			handle: (*Commands).tellFileCount,
		},
		{
			name: "lastmodified",
			keywords: []keyword{
				{"last modified", "en"}, {"newest file", "en"}, {"recently changed", "en"},
				{"最近修改", "zh"}, {"最新文件", "zh"},
			},
			handle: (*Commands).tellLastModified,
		},
		{
			name: "diskusage",
			keywords: []keyword{
				{"disk space", "en"}, {"disk usage", "en"}, {"free space", "en"},
				{"磁盘空间", "zh"}, {"剩余空间", "zh"},
			},
			handle: (*Commands).tellDiskUsage,
		},
	}
}

func (c *Commands) tellTime(lang string) (string, error) {
	now := c.now()
	if lang == "zh" {
		return "现在时间是" + now.Format("15点04分"), nil
	}
	return "The time is " + now.Format("3:04 PM") + ".", nil
}

func (c *Commands) tellDate(lang string) (string, error) {
	now := c.now()
	if lang == "zh" {
		return "今天是" + now.Format("2006年01月02日"), nil
	}
	return "Today is " + now.Format("Monday, January 2, 2006") + ".", nil
}

func (c *Commands) workingDir() (string, error) {
	if c.root != "" {
		return c.root, nil
	}
	return os.Getwd()
}

func (c *Commands) tellWorkingDir(lang string) (string, error) {
	dir, err := c.workingDir()
	if err != nil {
		return "", err
	}
	if lang == "zh" {
		return "当前目录是" + dir, nil
	}
	return "The current directory is " + dir + ".", nil
}

func (c *Commands) tellFileCount(lang string) (string, error) {
	dir, err := c.workingDir()
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	if lang == "zh" {
		return fmt.Sprintf("当前目录下有%d个文件", count), nil
	}
	return fmt.Sprintf("There are %d files in the current directory.", count), nil
}

func (c *Commands) tellLastModified(lang string) (string, error) {
	dir, err := c.workingDir()
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest    string
		newestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newest, newestMod = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		if lang == "zh" {
			return "当前目录下没有文件", nil
		}
		return "There are no files in the current directory.", nil
	}
	if lang == "zh" {
		return fmt.Sprintf("最近修改的文件是%s，修改于%s", newest, newestMod.Format("2006年01月02日 15:04")), nil
	}
	return fmt.Sprintf("The most recently modified file is %s, changed on %s.",
		newest, newestMod.Format("January 2 at 3:04 PM")), nil
}

func (c *Commands) tellDiskUsage(lang string) (string, error) {
	dir, err := c.workingDir()
	if err != nil {
		return "", err
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return "", err
	}
	const gb = 1 << 30
	total := float64(st.Blocks) * float64(st.Bsize) / gb
	free := float64(st.Bavail) * float64(st.Bsize) / gb
	if lang == "zh" {
		return fmt.Sprintf("磁盘剩余%.1fGB，共%.1fGB", free, total), nil
	}
	return fmt.Sprintf("The disk has %.1f of %.1f gigabytes free.", free, total), nil
}

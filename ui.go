package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"voiceguess/internal/catalog"
	"voiceguess/internal/game"
	"voiceguess/internal/playback"
	"voiceguess/internal/scorecard"
)

const (
	catalogTimeout = 30 * time.Second
	playTimeout    = 30 * time.Second
)

type clipSource interface {
	Load(ctx context.Context) ([]game.Clip, error)
}

type player interface {
	Play(ctx context.Context, clipID, src string) error
	Stop()
	Events() <-chan playback.Event
}

type appState int

const (
	stateLoading appState = iota
	statePlaying
	stateResults
	stateError
)

type catalogLoadedMsg struct {
	clips []game.Clip
	err   error
}

type playStartedMsg struct {
	gameID string
	clipID string
	err    error
}

type playbackEventMsg playback.Event

type advanceMsg struct{ gameID string }

type statsReloadedMsg struct {
	stats Stats
	err   error
}

type copiedMsg struct{ err error }

// --- KEY BINDINGS ---

type keyMap struct {
	Human   key.Binding
	AI      key.Binding
	Play    key.Binding
	Replay  key.Binding
	NewGame key.Binding
	Copy    key.Binding
	Retry   key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Human:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "human")),
		AI:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "AI")),
		Play:    key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play")),
		Replay:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "replay")),
		NewGame: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new game")),
		Copy:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy results")),
		Retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Human, k.AI, k.Play, k.Replay, k.NewGame, k.Copy, k.Retry, k.Dismiss, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// --- MODEL ---

type model struct {
	source clipSource
	player player
	db     *sql.DB
	log    *zap.Logger
	rules  game.Rules

	state      appState
	session    game.Session
	gameID     string
	guesses    []guessRecord
	feedback   *game.Feedback
	summary    game.Summary
	notice     string
	noticeBad  bool
	loadErr    error
	stats      Stats
	playCancel context.CancelFunc

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
}

func newModel(source clipSource, p player, db *sql.DB, log *zap.Logger, rules game.Rules) *model {
	m := &model{
		source:   source,
		player:   p,
		db:       db,
		log:      log,
		rules:    rules,
		state:    stateLoading,
		keys:     newKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
	}
	m.syncKeys()
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadCatalogCmd(m.source),
		waitForPlayback(m.player),
		reloadStatsCmd(m.db),
	)
}

func loadCatalogCmd(source clipSource) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		defer cancel()
		clips, err := source.Load(ctx)
		return catalogLoadedMsg{clips: clips, err: err}
	}
}

func waitForPlayback(p player) tea.Cmd {
	return func() tea.Msg {
		return playbackEventMsg(<-p.Events())
	}
}

func reloadStatsCmd(db *sql.DB) tea.Cmd {
	if db == nil {
		return nil
	}
	return func() tea.Msg {
		stats, err := getStats(db)
		return statsReloadedMsg{stats: stats, err: err}
	}
}

func saveGameCmd(db *sql.DB, log *zap.Logger, gameID string, summary game.Summary, guesses []guessRecord) tea.Cmd {
	if db == nil {
		return nil
	}
	return func() tea.Msg {
		logGameResult(db, log, gameID, summary, guesses)
		stats, err := getStats(db)
		return statsReloadedMsg{stats: stats, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

func (m *model) playCmd(clip game.Clip) tea.Cmd {
	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	m.playCancel = cancel
	p, gameID := m.player, m.gameID
	return func() tea.Msg {
		defer cancel()
		err := p.Play(ctx, clip.ID, clip.AudioURL)
		return playStartedMsg{gameID: gameID, clipID: clip.ID, err: err}
	}
}

// --- UPDATE ---

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.stopPlayback()
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Dismiss) {
			m.notice = ""
			return m, nil
		}
		switch m.state {
		case statePlaying:
			return m.updatePlaying(msg)
		case stateResults, stateError:
			return m.updateIdle(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.state != stateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case catalogLoadedMsg:
		return m.startGame(msg)

	case playStartedMsg:
		if msg.gameID != m.gameID || m.state != statePlaying {
			return m, nil
		}
		if msg.err != nil {
			m.log.Warn("playback failed",
				zap.String("clip", msg.clipID),
				zap.Stringer("reason", playback.ReasonOf(msg.err)),
				zap.Error(msg.err))
			m.notify(playbackMessage(msg.err), true)
			return m.apply(game.PlaybackFailed{ClipID: msg.clipID, Err: msg.err})
		}
		return m.apply(game.PlaybackStarted{ClipID: msg.clipID})

	case playbackEventMsg:
		next := waitForPlayback(m.player)
		if m.state != statePlaying {
			return m, next
		}
		if msg.Err != nil {
			m.log.Warn("playback ended with error", zap.String("clip", msg.ClipID), zap.Error(msg.Err))
			m.notify(playbackMessage(msg.Err), true)
		}
		_, cmd := m.apply(game.PlaybackEnded{ClipID: msg.ClipID})
		return m, tea.Batch(cmd, next)

	case advanceMsg:
		if msg.gameID != m.gameID {
			return m, nil
		}
		m.feedback = nil
		return m.apply(game.Advance{})

	case statsReloadedMsg:
		if msg.err != nil {
			m.log.Error("loading stats", zap.Error(msg.err))
			return m, nil
		}
		m.stats = msg.stats
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.log.Warn("copying scorecard", zap.Error(msg.err))
			m.notify("Couldn't reach the clipboard: "+msg.err.Error(), true)
		} else {
			m.notify("Copied to clipboard! Share your results with friends.", false)
		}
		return m, nil
	}
	return m, nil
}

func (m *model) updatePlaying(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Human):
		return m.apply(game.Guess{AI: false})
	case key.Matches(msg, m.keys.AI):
		return m.apply(game.Guess{AI: true})
	case key.Matches(msg, m.keys.Play), key.Matches(msg, m.keys.Replay):
		return m.apply(game.Replay{})
	case key.Matches(msg, m.keys.NewGame):
		return m.newGame()
	}
	return m, nil
}

func (m *model) updateIdle(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NewGame), key.Matches(msg, m.keys.Retry):
		return m.newGame()
	case key.Matches(msg, m.keys.Copy):
		return m, copyCmd(scorecard.Text(m.summary))
	}
	return m, nil
}

// apply runs ev through the session reducer and turns the resulting
// commands into tea.Cmds.
func (m *model) apply(ev game.Event) (tea.Model, tea.Cmd) {
	next, cmds, err := game.Reduce(m.session, ev)
	if err != nil {
		if errors.Is(err, game.ErrReplayLimitReached) {
			m.notify("No replays left for this clip.", false)
		} else {
			m.log.Debug("event rejected", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
		}
		return m, nil
	}
	m.session = next

	var out []tea.Cmd
	for _, c := range cmds {
		switch c := c.(type) {
		case game.PlayClip:
			out = append(out, m.playCmd(c.Clip))
		case game.Feedback:
			m.feedback = &c
			m.notice = ""
			m.guesses = append(m.guesses, guessRecord{
				Position:  len(m.guesses) + 1,
				Clip:      c.Clip,
				GuessedAI: c.Guessed,
				Correct:   c.Correct,
			})
			m.log.Debug("guess",
				zap.String("game", m.gameID),
				zap.String("clip", c.Clip.ID),
				zap.Bool("correct", c.Correct))
		case game.ScheduleAdvance:
			gameID := m.gameID
			out = append(out, tea.Tick(c.Delay, func(time.Time) tea.Msg {
				return advanceMsg{gameID: gameID}
			}))
		case game.ShowResults:
			m.state = stateResults
			m.summary = c.Summary
			out = append(out, saveGameCmd(m.db, m.log, m.gameID, c.Summary, slices.Clone(m.guesses)))
		}
	}
	m.syncKeys()
	return m, tea.Batch(out...)
}

func (m *model) startGame(msg catalogLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Error("loading catalog", zap.Error(msg.err))
		m.state = stateError
		m.loadErr = msg.err
		m.syncKeys()
		return m, nil
	}
	session, err := game.Start(msg.clips, m.rules)
	if err != nil {
		m.log.Error("starting session", zap.Error(err))
		m.state = stateError
		m.loadErr = err
		m.syncKeys()
		return m, nil
	}
	m.session = session
	m.gameID = uuid.NewString()
	m.guesses = nil
	m.feedback = nil
	m.state = statePlaying
	m.syncKeys()
	m.log.Info("game started", zap.String("game", m.gameID), zap.Int("clips", len(session.Clips)))
	return m, nil
}

func (m *model) newGame() (tea.Model, tea.Cmd) {
	m.stopPlayback()
	m.state = stateLoading
	m.gameID = ""
	m.loadErr = nil
	m.feedback = nil
	m.notice = ""
	m.syncKeys()
	return m, tea.Batch(m.spinner.Tick, loadCatalogCmd(m.source))
}

func (m *model) stopPlayback() {
	if m.playCancel != nil {
		m.playCancel()
		m.playCancel = nil
	}
	m.player.Stop()
}

func (m *model) notify(text string, bad bool) {
	m.notice = text
	m.noticeBad = bad
}

// syncKeys enables only the bindings that make sense right now, so the
// help line doubles as the list of available actions.
func (m *model) syncKeys() {
	playing := m.state == statePlaying
	m.keys.Human.SetEnabled(playing && m.session.CanGuess())
	m.keys.AI.SetEnabled(playing && m.session.CanGuess())
	m.keys.Play.SetEnabled(playing && m.session.CanReplay() && !m.session.Played)
	// Replay stays bound after the budget is spent so the player is told why.
	m.keys.Replay.SetEnabled(playing && m.session.CanGuess() && m.session.Played)
	m.keys.NewGame.SetEnabled(playing || m.state == stateResults)
	m.keys.Copy.SetEnabled(m.state == stateResults)
	m.keys.Retry.SetEnabled(m.state == stateError)
}

func playbackMessage(err error) string {
	switch playback.ReasonOf(err) {
	case playback.ReasonBlocked:
		return "Audio output is unavailable. Check your sound device, then press space to try again."
	case playback.ReasonUnsupported:
		return "This clip's audio format can't be played here."
	case playback.ReasonAborted:
		return "Loading the clip was interrupted. Press space to try again."
	default:
		return "Couldn't play this clip: " + err.Error()
	}
}

func catalogMessage(err error) string {
	var ie *catalog.InsufficientError
	switch {
	case errors.As(err, &ie):
		return fmt.Sprintf("Only %d playable clips were found, a game needs %d.\nUpload more clips, then press r to retry.", ie.Found, ie.Wanted)
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		return "Couldn't reach clip storage:\n" + err.Error() + "\nPress r to retry."
	default:
		return err.Error() + "\nPress r to retry."
	}
}

// --- VIEW ---

func (m *model) View() string {
	switch m.state {
	case stateLoading:
		return m.viewLoading()
	case stateError:
		return m.viewError()
	case stateResults:
		return m.viewResults()
	default:
		return m.viewPlaying()
	}
}

func (m *model) viewLoading() string {
	var b strings.Builder
	b.WriteString(styleHeader.Render("🔊 Guess the Voice"))
	b.WriteString("\n\n ")
	b.WriteString(m.spinner.View())
	b.WriteString(" Loading voice clips...\n\n ")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *model) viewError() string {
	var b strings.Builder
	b.WriteString(styleHeader.Render("🔊 Guess the Voice"))
	b.WriteRune('\n')
	b.WriteString(styleError.Render("Error: " + catalogMessage(m.loadErr)))
	b.WriteString("\n ")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *model) viewPlaying() string {
	var b strings.Builder
	s := m.session
	total := len(s.Clips)
	// While the advance is pending the session already points at the next
	// clip; keep showing the one that was just answered.
	shown := s.CurrentIndex
	if s.Pending {
		shown--
	}

	b.WriteString(styleHeader.Render("🔊 Guess the Voice"))
	b.WriteString("\n\n ")
	b.WriteString(m.progress.ViewAs(float64(shown) / float64(total)))
	b.WriteString(styleSubtle.Render(fmt.Sprintf("\n Question %d of %d\n\n", shown+1, total)))

	streak := ""
	if s.CurrentStreak > 0 {
		streak = "   " + styleStreak.Render(fmt.Sprintf("🔥 %d", s.CurrentStreak))
	}
	b.WriteString(fmt.Sprintf(" Score %s%s   Best streak %s\n\n",
		styleScore.Render(fmt.Sprint(s.Score)), streak, styleScore.Render(fmt.Sprint(s.LongestStreak))))

	var card strings.Builder
	card.WriteString("Listen to this voice:\n\n")
	switch {
	case s.Playing:
		card.WriteString(stylePlaying.Render("♪ playing..."))
	case s.Pending:
		card.WriteString(styleSubtle.Render("next clip coming up..."))
	case !s.Played:
		card.WriteString("▶ press space to play")
	default:
		card.WriteString(fmt.Sprintf("↻ replay with r (%d left)", s.ReplaysLeft()))
	}
	card.WriteString("\n\n")
	card.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		m.button("👤 Human (H)", m.keys.Human.Enabled()),
		"  ",
		m.button("🤖 AI (A)", m.keys.AI.Enabled()),
	))
	b.WriteString(styleCard.Render(card.String()))
	b.WriteRune('\n')

	if len(s.History) > 0 {
		b.WriteRune(' ')
		b.WriteString(renderHistory(s.History))
		b.WriteRune('\n')
	}
	if m.feedback != nil {
		b.WriteRune(' ')
		b.WriteString(renderFeedback(*m.feedback))
		b.WriteRune('\n')
	}
	b.WriteString(m.viewNotice())
	b.WriteString("\n ")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *model) viewResults() string {
	var b strings.Builder
	sum := m.summary
	rating := scorecard.Rate(sum.Score, sum.TotalClips)

	b.WriteString(styleHeader.Render("Game Complete! " + rating.Emoji))
	b.WriteString("\n ")
	b.WriteString(rating.Message)
	b.WriteString("\n\n")

	var card strings.Builder
	card.WriteString(styleScore.Render(fmt.Sprintf("%d/%d", sum.Score, sum.TotalClips)))
	card.WriteString(fmt.Sprintf("\n%d%% accuracy", rating.Percent))
	if sum.LongestStreak > 0 {
		card.WriteString("\n")
		card.WriteString(styleStreak.Render(fmt.Sprintf("🔥 %d best streak", sum.LongestStreak)))
	}
	card.WriteString("\n\n")
	card.WriteString(scorecard.Grid(sum.History))
	b.WriteString(styleCard.Render(card.String()))
	b.WriteRune('\n')

	if m.stats.GamesPlayed > 0 {
		b.WriteString(styleSubtle.Render(fmt.Sprintf(
			" All time: %d games · best %d · average %.1f · best streak %d · AI %s · human %s",
			m.stats.GamesPlayed, m.stats.BestScore, m.stats.AverageScore, m.stats.BestStreak,
			accuracy(m.stats.AICorrect, m.stats.AITotal), accuracy(m.stats.HumanCorrect, m.stats.HumanTotal))))
		b.WriteRune('\n')
	}
	b.WriteString(m.viewNotice())
	b.WriteString("\n ")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *model) viewNotice() string {
	if m.notice == "" {
		return ""
	}
	style := styleNotice.BorderForeground(lipgloss.Color("10"))
	if m.noticeBad {
		style = styleNotice.BorderForeground(lipgloss.Color("9"))
	}
	return style.Render(m.notice) + "\n"
}

func (m *model) button(label string, enabled bool) string {
	if enabled {
		return styleButton.Render(label)
	}
	return styleDisabled.Render(label)
}

func renderHistory(history []bool) string {
	marks := make([]string, len(history))
	for i, ok := range history {
		if ok {
			marks[i] = styleCorrect.Render("✓")
		} else {
			marks[i] = styleIncorrect.Render("✗")
		}
	}
	return strings.Join(marks, " ")
}

func renderFeedback(fb game.Feedback) string {
	if fb.Correct {
		return styleCorrect.Render("Correct! 🎉") + " " + fb.Clip.Origin() + " voice detected " +
			styleSubtle.Render("("+fb.Clip.Title+")")
	}
	return styleIncorrect.Render("Incorrect.") + " That was a " + fb.Clip.Origin() + " voice " +
		styleSubtle.Render("("+fb.Clip.Title+")")
}

func accuracy(correct, total int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", float64(correct)/float64(total)*100)
}

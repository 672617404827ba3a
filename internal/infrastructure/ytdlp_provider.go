package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/pkg/logger"
)

// CompletionLine is logged each time a transfer reaches 100%
const CompletionLine = "Download Complete. Processing..."

var (
	progressRegex    = regexp.MustCompile(`^\[download\]\s+([\d.]+)%`)
	destinationRegex = regexp.MustCompile(`^\[(?:download|ExtractAudio)\] Destination: (.+)$`)
	mergerRegex      = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
)

// YTDLPProvider implements domain.MediaProvider on top of the yt-dlp binary
type YTDLPProvider struct {
	binary        string
	extraArgs     []string
	patterns      []string
	updateCommand []string
	logsDir       string // raw download output goes to download-YYYYMMDD.log here; empty disables it
	logger        *zap.Logger
}

// NewYTDLPProvider creates a new yt-dlp provider
func NewYTDLPProvider(config *domain.ProviderConfig, logsDir string, logger *zap.Logger) *YTDLPProvider {
	binary := config.YTDLPBinary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPProvider{
		binary:        binary,
		extraArgs:     config.ExtraArgs,
		patterns:      config.SupportedURLPatterns,
		updateCommand: config.UpdateCommand,
		logsDir:       logsDir,
		logger:        logger,
	}
}

type searchResponse struct {
	Entries []json.RawMessage `json:"entries"`
}

type searchEntry struct {
	Title      *string  `json:"title"`
	Channel    string   `json:"channel"`
	Uploader   string   `json:"uploader"`
	ViewCount  *float64 `json:"view_count"`
	Duration   *float64 `json:"duration"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
}

type infoResponse struct {
	Title     string         `json:"title"`
	Uploader  string         `json:"uploader"`
	Channel   string         `json:"channel"`
	Thumbnail string         `json:"thumbnail"`
	ViewCount *float64       `json:"view_count"`
	Duration  *float64       `json:"duration"`
	Formats   []formatRecord `json:"formats"`
}

type formatRecord struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	FormatNote     string   `json:"format_note"`
	Height         *float64 `json:"height"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	ABR            *float64 `json:"abr"`
}

// Search runs a flat ytsearch and keeps every entry that has a URL
func (p *YTDLPProvider) Search(ctx context.Context, query string, limit int) ([]domain.VideoSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	args := []string{
		"--flat-playlist", "-J", "--skip-download", "--no-warnings", "--ignore-errors",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	}

	var resp searchResponse
	if err := p.runJSON(ctx, args, &resp, true); err != nil {
		return nil, err
	}

	results := make([]domain.VideoSummary, 0, len(resp.Entries))
	for _, raw := range resp.Entries {
		var entry searchEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			p.logger.Debug("Skipping unparseable search entry", zap.Error(err))
			continue
		}
		if summary, ok := entry.toSummary(); ok {
			results = append(results, summary)
		}
	}

	p.logger.Info("Search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func (e searchEntry) toSummary() (domain.VideoSummary, bool) {
	url := e.URL
	if url == "" {
		url = e.WebpageURL
	}
	if url == "" {
		return domain.VideoSummary{}, false
	}

	title := "N/A"
	if e.Title != nil && *e.Title != "" {
		title = *e.Title
	}
	channel := e.Channel
	if channel == "" {
		channel = e.Uploader
	}

	return domain.VideoSummary{
		Title:           title,
		Channel:         channel,
		ViewCount:       toInt64(e.ViewCount),
		DurationSeconds: toInt64(e.Duration),
		SourceURL:       url,
	}, true
}

// Resolve fetches metadata and formats for a single supported URL
func (p *YTDLPProvider) Resolve(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	if !domain.IsSupportedMediaURL(url, p.patterns) {
		return nil, domain.NewError(domain.KindInvalidInput, "Unsupported URL: %s", url)
	}

	args := []string{"-J", "--no-playlist", "--skip-download", "--no-warnings", url}

	var resp infoResponse
	if err := p.runJSON(ctx, args, &resp, false); err != nil {
		return nil, err
	}

	return resp.toRawMediaInfo(), nil
}

func (r infoResponse) toRawMediaInfo() *domain.RawMediaInfo {
	title := r.Title
	if title == "" {
		title = "N/A"
	}
	channel := r.Uploader
	if channel == "" {
		channel = r.Channel
	}

	info := &domain.RawMediaInfo{
		Title:           title,
		Channel:         channel,
		ThumbnailURL:    r.Thumbnail,
		ViewCount:       toInt64(r.ViewCount),
		DurationSeconds: toInt64(r.Duration),
		Formats:         make([]domain.RawFormat, 0, len(r.Formats)),
	}
	for _, f := range r.Formats {
		format := domain.RawFormat{
			FormatID:       f.FormatID,
			Ext:            f.Ext,
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			FormatNote:     f.FormatNote,
			Filesize:       toInt64(f.Filesize),
			FilesizeApprox: toInt64(f.FilesizeApprox),
			ABR:            f.ABR,
		}
		if f.Height != nil {
			h := int(*f.Height)
			format.Height = &h
		}
		info.Formats = append(info.Formats, format)
	}
	return info
}

func toInt64(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

// runJSON runs yt-dlp and decodes its stdout. With tolerateExit a non-zero exit
// still counts as success when stdout holds valid JSON (--ignore-errors).
func (p *YTDLPProvider) runJSON(ctx context.Context, args []string, v interface{}, tolerateExit bool) error {
	args = p.withExtraArgs(args)
	cmd := exec.CommandContext(ctx, p.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("Running yt-dlp", zap.String("command", ShellEscapeCommand(p.binary, args...)))

	runErr := cmd.Run()
	if runErr != nil && (!tolerateExit || stdout.Len() == 0) {
		return p.engineError(lastErrorLine(stderr.String()), runErr)
	}

	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), v); err != nil {
		return &domain.Error{
			Kind:    domain.KindProvider,
			Message: "yt-dlp returned an unreadable answer",
			Err:     errors.Wrap(err, "decode yt-dlp output"),
		}
	}
	return nil
}

// withExtraArgs inserts the configured extra args before the final positional argument
func (p *YTDLPProvider) withExtraArgs(args []string) []string {
	if len(p.extraArgs) == 0 || len(args) == 0 {
		return args
	}
	out := make([]string, 0, len(args)+len(p.extraArgs))
	out = append(out, args[:len(args)-1]...)
	out = append(out, p.extraArgs...)
	return append(out, args[len(args)-1])
}

// engineError carries the engine's own ERROR line when there is one
func (p *YTDLPProvider) engineError(errorLine string, err error) *domain.Error {
	var exitErr *exec.ExitError
	wrapped := errors.Wrapf(err, "run %s", p.binary)

	message := errorLine
	if message == "" {
		if errors.As(err, &exitErr) {
			message = fmt.Sprintf("yt-dlp exited: %v", err)
		} else {
			message = fmt.Sprintf("failed to start yt-dlp: %v", err)
		}
	}
	return &domain.Error{Kind: domain.KindProvider, Message: message, Err: wrapped}
}

func lastErrorLine(output string) string {
	var last string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			last = line
		}
	}
	return last
}

// DownloadArgs translates directives into yt-dlp command-line flags
func DownloadArgs(url string, d domain.DownloadDirectives) []string {
	args := []string{"--newline", "-o", d.OutputTemplate, "-f", d.Format}
	if d.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if d.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", d.MergeOutputFormat)
	}
	for _, pp := range d.PostProcessors {
		switch pp.Key {
		case domain.PostProcessorExtractAudio:
			args = append(args, "-x")
			if pp.PreferredCodec != "" {
				args = append(args, "--audio-format", pp.PreferredCodec)
			}
			if pp.PreferredQuality != "" {
				args = append(args, "--audio-quality", pp.PreferredQuality+"K")
			}
		case domain.PostProcessorEmbedThumbnail:
			args = append(args, "--embed-thumbnail")
		}
	}
	if d.WriteThumbnail {
		args = append(args, "--write-thumbnail")
	}
	return append(args, url)
}

// ParseProgress extracts the percentage of a "[download]  42.3%" line
func ParseProgress(line string) (int, bool) {
	match := progressRegex.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return int(percent), true
}

// Download runs yt-dlp, streaming progress and log lines, and returns the
// engine's name for the finished file.
func (p *YTDLPProvider) Download(ctx context.Context, url string, d domain.DownloadDirectives, onProgress domain.ProgressFunc, onLog domain.LogFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}
	if onLog == nil {
		onLog = func(string) {}
	}

	args := p.withExtraArgs(DownloadArgs(url, d))
	cmdLine := ShellEscapeCommand(p.binary, args...)
	p.logger.Info("Running yt-dlp download", zap.String("command", cmdLine))

	rawLog := p.openRawLog()
	if rawLog != nil {
		defer rawLog.Close()
		writeLogHeader(rawLog, url, cmdLine)
	}

	cmd := exec.CommandContext(ctx, p.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrap(err, "failed to get stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", errors.Wrap(err, "failed to get stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		e := p.engineError("", err)
		writeLogFooter(rawLog, false, e.Message)
		return "", e
	}

	var (
		mu           sync.Mutex
		errorLine    string
		destination  string
		transferDone bool
	)
	handle := func(line string) {
		mu.Lock()
		defer mu.Unlock()

		if rawLog != nil {
			fmt.Fprintln(rawLog, line)
		}

		if percent, ok := ParseProgress(line); ok {
			onProgress(percent)
			if percent >= 100 {
				if !transferDone {
					transferDone = true
					onLog(CompletionLine)
				}
			} else {
				transferDone = false
			}
			return
		}

		if strings.HasPrefix(line, "ERROR:") {
			errorLine = line
		}
		if m := destinationRegex.FindStringSubmatch(line); m != nil {
			destination = m[1]
		} else if m := mergerRegex.FindStringSubmatch(line); m != nil {
			destination = m[1]
		}
		onLog(line)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(stdout, handle, &wg)
	go scanLines(stderr, handle, &wg)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		e := p.engineError(errorLine, err)
		writeLogFooter(rawLog, false, e.Message)
		return "", e
	}

	finalPath, err := p.preparedFilename(ctx, url, d)
	if err != nil {
		p.logger.Warn("Could not ask yt-dlp for the final filename", zap.String("url", url), zap.Error(err))
		finalPath = destination
	}
	if finalPath == "" {
		e := domain.NewError(domain.KindProvider, "Download finished but yt-dlp reported no output file")
		writeLogFooter(rawLog, false, e.Message)
		return "", e
	}

	writeLogFooter(rawLog, true, "Saved: "+finalPath)
	return finalPath, nil
}

func scanLines(r io.Reader, handle func(string), wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			handle(line)
		}
	}
	// the scanner gives up on an oversized line; keep the pipe drained so yt-dlp can exit
	_, _ = io.Copy(io.Discard, r)
}

// Update runs the configured self-update command and streams its combined
// output to onLog, finishing with the exit code line. The result is the last
// stdout line, or the last stderr line when stdout was empty.
func (p *YTDLPProvider) Update(ctx context.Context, onLog domain.LogFunc) (string, error) {
	if onLog == nil {
		onLog = func(string) {}
	}

	name, args := p.binary, []string{"-U"}
	if len(p.updateCommand) > 0 {
		name, args = p.updateCommand[0], p.updateCommand[1:]
	}
	cmdLine := ShellEscapeCommand(name, args...)
	p.logger.Info("Updating yt-dlp", zap.String("command", cmdLine))
	onLog("Starting update process...")

	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrap(err, "failed to get stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", errors.Wrap(err, "failed to get stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		e := &domain.Error{
			Kind:    domain.KindProvider,
			Message: fmt.Sprintf("failed to start %s: %v", name, err),
			Err:     errors.Wrapf(err, "run %s", name),
		}
		onLog("Error: " + e.Message)
		return "", e
	}

	var (
		mu               sync.Mutex
		lastOut, lastErr string
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanLines(stdout, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lastOut = line
		onLog(line)
	}, &wg)
	go scanLines(stderr, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lastErr = line
		onLog(line)
	}, &wg)
	wg.Wait()

	last := lastOut
	if last == "" {
		last = lastErr
	}

	waitErr := cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	onLog(fmt.Sprintf("Process finished with exit code %d", code))

	if waitErr != nil {
		p.logger.Warn("yt-dlp update failed", zap.String("command", cmdLine), zap.Error(waitErr))
		return "", &domain.Error{
			Kind:    domain.KindProvider,
			Message: fmt.Sprintf("Update failed with exit code %d", code),
			Err:     errors.Wrapf(waitErr, "run %s", name),
		}
	}

	p.logger.Info("yt-dlp update finished", zap.String("result", last))
	return last, nil
}

// preparedFilename asks yt-dlp which name the template and format resolve to
func (p *YTDLPProvider) preparedFilename(ctx context.Context, url string, d domain.DownloadDirectives) (string, error) {
	args := []string{"--get-filename", "--no-warnings", "-o", d.OutputTemplate, "-f", d.Format}
	if d.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if d.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", d.MergeOutputFormat)
	}
	args = p.withExtraArgs(append(args, url))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", p.engineError(lastErrorLine(stderr.String()), err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	name := strings.TrimSpace(lines[len(lines)-1])
	if name == "" {
		return "", errors.New("yt-dlp printed no filename")
	}
	return name, nil
}

// openRawLog opens today's raw download log, or returns nil when disabled or unavailable
func (p *YTDLPProvider) openRawLog() *os.File {
	if p.logsDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.logsDir, 0755); err != nil {
		p.logger.Warn("Failed to create logs directory", zap.Error(err))
		return nil
	}
	path := logger.CategoryLogPath(p.logsDir, logger.CategoryDownload, time.Now())
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		p.logger.Warn("Failed to open download log", zap.String("path", path), zap.Error(err))
		return nil
	}
	return file
}

func writeLogHeader(file *os.File, url, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Download: %s ===\n", timestamp, url)
	fmt.Fprintf(file, "$ %s\n", cmdLine)
}

func writeLogFooter(file *os.File, success bool, message string) {
	if file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(file, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(file, "=== END ===\n\n")
}

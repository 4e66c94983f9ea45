// Package quality removes redundant lower-quality audio files. Episodes can
// exist in several encodings side by side (an old MP3 next to a newer AAC
// download); the cleaner keeps the best one per episode and deletes the rest.
package quality

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
	"go.uber.org/zap"
)

const (
	// An AAC-family file at or above this bitrate beats any MP3 at or
	// below mp3UpgradeCeiling, even when the MP3's bitrate is higher.
	aacPreferenceFloor = 96
	mp3UpgradeCeiling  = 128
)

// audioExtensions lists the encodings that can represent the same episode,
// in the order groups are evaluated.
var audioExtensions = []string{".mp3", ".mp4", ".aac", ".m4a"}

func isAACFamily(ext string) bool {
	return ext == ".mp4" || ext == ".aac" || ext == ".m4a"
}

// Result accumulates the outcome of a cleanup run.
type Result struct {
	Removed int
	Errors  int
}

func (r *Result) add(other Result) {
	r.Removed += other.Removed
	r.Errors += other.Errors
}

// Cleaner deletes lower-quality duplicates beneath a download folder. With
// dryRun set it only logs what would be removed.
type Cleaner struct {
	logger *zap.Logger
	dryRun bool
	probe  func(path, ext string) (int, bool)
}

func NewCleaner(logger *zap.Logger, dryRun bool) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cleaner{logger: logger, dryRun: dryRun}
	c.probe = c.probeBitrate
	return c
}

// Run processes every program folder directly beneath root.
func (c *Cleaner) Run(root string) (Result, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, err
	}

	var total Result
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		total.add(c.processFolder(filepath.Join(root, entry.Name())))
	}
	return total, nil
}

// processFolder groups the audio files of one program folder by filename
// stem and resolves each group.
func (c *Cleaner) processFolder(dir string) Result {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Error("failed to read program folder", zap.String("dir", dir), zap.Error(err))
		return Result{Errors: 1}
	}

	groups := make(map[string]map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !isAudioExtension(ext) {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if groups[stem] == nil {
			groups[stem] = make(map[string]string)
		}
		groups[stem][ext] = filepath.Join(dir, entry.Name())
	}

	var total Result
	for _, files := range groups {
		total.add(c.resolveGroup(files))
	}
	return total
}

func isAudioExtension(ext string) bool {
	for _, known := range audioExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

type probedFile struct {
	path    string
	ext     string
	bitrate int
}

// resolveGroup picks the best encoding of one episode and removes the rest.
// Files whose bitrate cannot be determined are left alone.
func (c *Cleaner) resolveGroup(files map[string]string) Result {
	if len(files) <= 1 {
		return Result{}
	}

	var probed []probedFile
	for _, ext := range audioExtensions {
		path, ok := files[ext]
		if !ok {
			continue
		}
		bitrate, ok := c.probe(path, ext)
		if !ok {
			c.logger.Debug("could not determine bitrate, skipping", zap.String("path", path))
			continue
		}
		probed = append(probed, probedFile{path: path, ext: ext, bitrate: bitrate})
	}
	if len(probed) == 0 {
		return Result{}
	}

	best := pickBest(probed)
	if best == nil {
		return Result{}
	}

	hasAAC := false
	for _, file := range probed {
		if isAACFamily(file.ext) {
			hasAAC = true
			break
		}
	}

	var result Result
	for _, file := range probed {
		if file.path == best.path {
			continue
		}
		remove := false
		switch {
		case file.ext == ".mp3" && file.bitrate <= mp3UpgradeCeiling && hasAAC:
			remove = true
		case file.bitrate < best.bitrate:
			remove = true
		}
		if !remove {
			continue
		}

		if c.dryRun {
			c.logger.Info("dry run: would remove lower quality file",
				zap.String("path", file.path), zap.Int("kbps", file.bitrate))
			result.Removed++
			continue
		}
		if err := os.Remove(file.path); err != nil {
			c.logger.Error("failed to remove lower quality file",
				zap.String("path", file.path), zap.Error(err))
			result.Errors++
			continue
		}
		c.logger.Info("removed lower quality file",
			zap.String("path", file.path), zap.Int("kbps", file.bitrate))
		result.Removed++
	}
	return result
}

// pickBest applies the quality preference: within the AAC family higher
// bitrate wins and anything at or above the preference floor displaces an
// MP3; among MP3s only a strictly higher bitrate wins.
func pickBest(probed []probedFile) *probedFile {
	var best *probedFile
	for i := range probed {
		file := &probed[i]
		if isAACFamily(file.ext) {
			if file.bitrate < aacPreferenceFloor {
				continue
			}
			if best == nil || file.bitrate > best.bitrate || best.ext == ".mp3" {
				best = file
			}
			continue
		}
		if best == nil || (best.ext == ".mp3" && file.bitrate > best.bitrate) {
			best = file
		}
	}
	return best
}

// probeBitrate estimates the average bitrate of an audio file in kbps.
func (c *Cleaner) probeBitrate(path, ext string) (int, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return 0, false
	}

	var duration float64
	switch ext {
	case ".mp3":
		duration, err = mp3Duration(path)
	case ".aac":
		duration, err = adtsDuration(path)
	case ".mp4", ".m4a":
		duration, err = c.mp4Duration(path)
	default:
		return 0, false
	}
	if err != nil || duration <= 0 {
		return 0, false
	}

	bitrate := int(math.Round(float64(info.Size()) * 8 / duration / 1000))
	if bitrate <= 0 {
		return 0, false
	}
	return bitrate, true
}

// mp3Duration sums the duration of every MP3 frame in the file.
func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return total, nil
}

var adtsSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

const adtsSamplesPerFrame = 1024

// adtsDuration walks the ADTS frame headers of a raw AAC stream. Each frame
// carries 1024 samples at the rate encoded in its header.
func adtsDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var frames int
	sampleRate := 0

	header := make([]byte, 7)
	for {
		if _, err := io.ReadFull(reader, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		// 12-bit syncword.
		if header[0] != 0xFF || header[1]&0xF0 != 0xF0 {
			return 0, errors.New("not an adts stream")
		}
		if sampleRate == 0 {
			index := int(header[2]>>2) & 0x0F
			if index >= len(adtsSampleRates) {
				return 0, errors.New("invalid adts sampling frequency index")
			}
			sampleRate = adtsSampleRates[index]
		}
		frameLength := int(header[3]&0x03)<<11 | int(header[4])<<3 | int(header[5])>>5
		if frameLength < len(header) {
			return 0, errors.New("invalid adts frame length")
		}
		if _, err := reader.Discard(frameLength - len(header)); err != nil {
			break
		}
		frames++
	}

	if frames == 0 || sampleRate == 0 {
		return 0, errors.New("no adts frames found")
	}
	return float64(frames) * adtsSamplesPerFrame / float64(sampleRate), nil
}

// mp4Duration estimates the duration of an MP4 container from the episode
// sidecar written next to it. The container is sniffed first so a mislabeled
// file is not misjudged.
func (c *Cleaner) mp4Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	_, fileType, err := tag.Identify(f)
	_ = f.Close()
	if err != nil {
		return 0, err
	}
	if fileType != tag.M4A && fileType != tag.M4B && fileType != tag.M4P && fileType != tag.ALAC {
		return 0, errors.New("not an mp4 container")
	}

	sidecarPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return 0, err
	}
	var sidecar struct {
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return 0, err
	}
	if sidecar.Duration <= 0 {
		return 0, errors.New("sidecar carries no duration")
	}
	return sidecar.Duration, nil
}

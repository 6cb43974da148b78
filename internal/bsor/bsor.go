// Package bsor reads and writes replays in the little-endian BSOR layout:
// a magic number, a format version, an info section, and a frames section.
// Sections after the frames are not decoded.
package bsor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sabers-go/sabers/pkg/core"
)

const (
	Magic   int32 = 0x442d3d69
	Version byte  = 1

	sectionInfo   byte = 0
	sectionFrames byte = 1

	// maxStringLen bounds length prefixes so corrupt input cannot trigger
	// huge allocations.
	maxStringLen = 1 << 20
	// frameSize is the encoded size of one core.ReplayFrame.
	frameSize = 4 + 4 + 3*(3+4)*4
)

var (
	ErrBadMagic   = errors.New("not a bsor replay")
	ErrBadVersion = errors.New("unsupported bsor version")
	ErrBadSection = errors.New("unexpected section")
	ErrBadString  = errors.New("invalid string")
	ErrFrameCount = errors.New("invalid frame count")
)

var byteOrder = binary.LittleEndian

const modifiersDelim = ","

// ReadFile decodes the replay stored at path.
func ReadFile(path string) (*core.Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}

// Parse decodes a replay held in memory.
func Parse(data []byte) (*core.Replay, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a replay from r. Truncated or malformed input returns an
// error; it never panics.
func Decode(r io.Reader) (*core.Replay, error) {
	d := &decoder{r: r}

	if magic := d.i32(); d.err == nil && magic != Magic {
		return nil, fmt.Errorf("%w: magic %#x", ErrBadMagic, uint32(magic))
	}
	if v := d.byte(); d.err == nil && v != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	if d.err != nil {
		return nil, fmt.Errorf("error reading header: %w", d.err)
	}

	info, err := d.info()
	if err != nil {
		return nil, fmt.Errorf("error reading info: %w", err)
	}

	frames, err := d.frames()
	if err != nil {
		return nil, fmt.Errorf("error reading frames: %w", err)
	}

	return &core.Replay{Info: info, Frames: frames}, nil
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, byteOrder, v); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
	}
}

func (d *decoder) byte() byte {
	var v byte
	d.read(&v)
	return v
}

func (d *decoder) bool() bool {
	return d.byte() != 0
}

func (d *decoder) i32() int32 {
	var v int32
	d.read(&v)
	return v
}

func (d *decoder) f32() float32 {
	var v float32
	d.read(&v)
	return v
}

func (d *decoder) string() string {
	n := d.i32()
	if d.err != nil {
		return ""
	}
	if n < 0 || n > maxStringLen {
		d.err = fmt.Errorf("%w: length %d", ErrBadString, n)
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = err
		return ""
	}
	if !utf8.Valid(buf) {
		d.err = fmt.Errorf("%w: not utf-8", ErrBadString)
		return ""
	}
	return string(buf)
}

func (d *decoder) section(want byte) error {
	if s := d.byte(); d.err == nil && s != want {
		return fmt.Errorf("%w: got %d, want %d", ErrBadSection, s, want)
	}
	return d.err
}

func (d *decoder) info() (core.ReplayInfo, error) {
	var info core.ReplayInfo
	if err := d.section(sectionInfo); err != nil {
		return info, err
	}

	info.Version = d.string()
	info.GameVersion = d.string()
	info.Timestamp = d.string()

	info.PlayerID = d.string()
	info.PlayerName = d.string()
	info.Platform = d.string()

	info.TrackingSystem = d.string()
	info.HMD = d.string()
	info.Controller = d.string()

	info.SongHash = d.string()
	info.SongName = d.string()
	info.Mapper = d.string()
	info.Difficulty = d.string()

	info.Score = d.i32()
	info.Mode = d.string()
	info.Environment = d.string()
	if mods := d.string(); mods != "" {
		info.Modifiers = strings.Split(mods, modifiersDelim)
	}
	info.JumpDistance = d.f32()
	info.LeftHanded = d.bool()
	info.Height = d.f32()

	info.StartTime = d.f32()
	info.FailTime = d.f32()
	info.Speed = d.f32()

	return info, d.err
}

func (d *decoder) frames() ([]core.ReplayFrame, error) {
	if err := d.section(sectionFrames); err != nil {
		return nil, err
	}
	n := d.i32()
	if d.err != nil {
		return nil, d.err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrFrameCount, n)
	}

	frames := make([]core.ReplayFrame, 0, min(int(n), 1<<16))
	for i := int32(0); i < n; i++ {
		var f core.ReplayFrame
		d.read(&f)
		if d.err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, d.err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Serialize encodes a replay into memory.
func Serialize(replay *core.Replay) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 + len(replay.Frames)*frameSize)
	if err := Encode(&buf, replay); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes replay to w. Only the info and frames sections are written.
func Encode(w io.Writer, replay *core.Replay) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}

	e.write(Magic)
	e.write(Version)

	info := &replay.Info
	e.write(sectionInfo)
	e.string(info.Version)
	e.string(info.GameVersion)
	e.string(info.Timestamp)

	e.string(info.PlayerID)
	e.string(info.PlayerName)
	e.string(info.Platform)

	e.string(info.TrackingSystem)
	e.string(info.HMD)
	e.string(info.Controller)

	e.string(info.SongHash)
	e.string(info.SongName)
	e.string(info.Mapper)
	e.string(info.Difficulty)

	e.write(info.Score)
	e.string(info.Mode)
	e.string(info.Environment)
	e.string(strings.Join(info.Modifiers, modifiersDelim))
	e.write(info.JumpDistance)
	e.write(info.LeftHanded)
	e.write(info.Height)

	e.write(info.StartTime)
	e.write(info.FailTime)
	e.write(info.Speed)

	e.write(sectionFrames)
	e.write(int32(len(replay.Frames)))
	for i := range replay.Frames {
		e.write(&replay.Frames[i])
	}

	if e.err != nil {
		return fmt.Errorf("error encoding replay: %w", e.err)
	}
	return bw.Flush()
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, byteOrder, v)
}

func (e *encoder) string(s string) {
	if len(s) > maxStringLen {
		e.err = fmt.Errorf("%w: length %d", ErrBadString, len(s))
		return
	}
	e.write(int32(len(s)))
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

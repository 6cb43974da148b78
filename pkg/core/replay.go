// pkg/core/replay.go
package core

// Vec3 is a position in tracking space.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat struct {
	X, Y, Z, W float32
}

// Pose is the tracked transform of a device.
type Pose struct {
	Position Vec3
	Rotation Quat
}

// ReplayInfo is the header block of a replay.
type ReplayInfo struct {
	Version     string
	GameVersion string
	Timestamp   string

	PlayerID   string
	PlayerName string
	Platform   string

	TrackingSystem string
	HMD            string
	Controller     string

	SongHash   string
	SongName   string
	Mapper     string
	Difficulty string

	Score        int32
	Mode         string
	Environment  string
	Modifiers    []string
	JumpDistance float32
	LeftHanded   bool
	Height       float32

	StartTime float32
	FailTime  float32
	Speed     float32
}

// IsSameMap reports whether two replays were played on the same difficulty of the same map.
func (i *ReplayInfo) IsSameMap(other *ReplayInfo) bool {
	return i.SongHash == other.SongHash && i.Mode == other.Mode && i.Difficulty == other.Difficulty
}

// ReplayFrame is one sample of head and hand tracking.
type ReplayFrame struct {
	Time      float32
	FPS       int32
	Head      Pose
	LeftHand  Pose
	RightHand Pose
}

// Replay is a decoded replay: header plus tracking frames.
type Replay struct {
	Info   ReplayInfo
	Frames []ReplayFrame
}

// Duration returns the time of the last frame, or 0 when there are none.
func (r *Replay) Duration() float32 {
	if len(r.Frames) == 0 {
		return 0
	}
	return r.Frames[len(r.Frames)-1].Time
}

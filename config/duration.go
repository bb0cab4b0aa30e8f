package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dep2p/go-rtsync/pkg/types"
)

// Duration 可从 JSON 与环境变量解析的 time.Duration
//
// JSON 中接受 "250ms" 形式的字符串或纳秒整数，编码时总是输出字符串。
// 环境变量只接受字符串形式。负值视为无效配置。
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.set(s)
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration %s: want string or nanoseconds: %w", data, types.ErrInvalidConfig)
	}
	if n < 0 {
		return fmt.Errorf("duration %d is negative: %w", n, types.ErrInvalidConfig)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalText 实现 encoding.TextUnmarshaler（环境变量）
func (d *Duration) UnmarshalText(text []byte) error {
	return d.set(string(text))
}

func (d *Duration) set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, types.ErrInvalidConfig)
	}
	if v < 0 {
		return fmt.Errorf("duration %q is negative: %w", s, types.ErrInvalidConfig)
	}
	*d = Duration(v)
	return nil
}

// Duration 底层 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// String 返回 time.Duration 的字符串形式
func (d Duration) String() string { return time.Duration(d).String() }

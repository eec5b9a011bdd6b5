package configs

import (
	"github.com/spf13/viper"
	"github.com/vibbin/vibbin/internal/client/media"
)

// MediaConstraints returns the capture settings from [media], falling back to the defaults
// for anything unset
func MediaConstraints() media.Constraints {
	c := media.DefaultConstraints()
	if w := viper.GetInt("media.width"); w > 0 {
		c.Width = w
	}
	if h := viper.GetInt("media.height"); h > 0 {
		c.Height = h
	}
	if fps := viper.GetFloat64("media.frame-rate"); fps > 0 {
		c.FrameRate = float32(fps)
	}
	if fps := viper.GetFloat64("media.max-frame-rate"); fps > 0 {
		c.MaxFrameRate = float32(fps)
	}
	c.MaxFrameRate = max(c.MaxFrameRate, c.FrameRate)
	return c
}

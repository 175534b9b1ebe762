package codec

import (
	"fmt"

	"github.com/bobboyms/kvengine/internal/engine"
)

// Apply decodes buf and applies the resulting command to e. It is the
// seam a replicated-log collaborator calls per committed log entry: the
// collaborator owns ordering and durability of the log itself, Apply
// only owns turning one entry into an engine mutation.
func Apply(e *engine.Engine, buf []byte) error {
	cmd, err := Decode(buf)
	if err != nil {
		return err
	}
	return ApplyCommand(e, cmd)
}

// ApplyCommand applies an already-decoded Command to e.
func ApplyCommand(e *engine.Engine, cmd Command) error {
	switch cmd.Tag {
	case TagPut:
		_, _, err := e.Put(cmd.Key, cmd.Value)
		return err
	case TagDelete:
		_, _, err := e.Delete(cmd.Key)
		return err
	default:
		return fmt.Errorf("codec: Apply: unreachable tag %#x", cmd.Tag)
	}
}

//go:build !linux

package clipboard

// Type pastes text through the clipboard. Outside linux there is no
// per-character injection path.
func Type(text string) error {
	if err := Copy(text); err != nil {
		return err
	}
	return Paste()
}

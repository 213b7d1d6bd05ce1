package tracker

// EndReason says which lifecycle condition ended a session. It is a closed
// set; the wire value is the snake_case name.
type EndReason int

const (
	ReasonVisibilityHidden EndReason = iota
	ReasonWindowBlur
	ReasonPageHide
	ReasonPageFreeze
	ReasonPowerChange
	ReasonUnmount
)

// String returns the wire value for the reason.
func (r EndReason) String() string {
	switch r {
	case ReasonVisibilityHidden:
		return "visibility_hidden"
	case ReasonWindowBlur:
		return "window_blur"
	case ReasonPageHide:
		return "page_hide"
	case ReasonPageFreeze:
		return "page_freeze"
	case ReasonPowerChange:
		return "power_change"
	case ReasonUnmount:
		return "unmount"
	default:
		return "unknown"
	}
}

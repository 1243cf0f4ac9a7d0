package access

// Recorder receives resolver events for metrics.
type Recorder interface {
	Resolution(role Role, sourceAvailable bool, cached bool)
	StoreFailure()
	SelfHeal(success bool)
}

type nopRecorder struct{}

func (nopRecorder) Resolution(Role, bool, bool) {}
func (nopRecorder) StoreFailure()               {}
func (nopRecorder) SelfHeal(bool)               {}

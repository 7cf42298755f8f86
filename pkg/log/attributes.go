package log

// Shared structured-field keys so log lines stay greppable across components.
const (
	ComponentKey = "component"

	// Data shape attributes
	SamplesKey  = "samples"
	ChannelsKey = "channels"
	VerticesKey = "vertices"
	BatchKey    = "batch"

	// Training attributes
	EpochKey        = "epoch"
	TrainLossKey    = "train_loss"
	ValLossKey      = "val_loss"
	LearningRateKey = "learning_rate"
	ArchKey         = "architecture"

	// Artifact attributes
	PathKey     = "path"
	FormatKey   = "format"
	DurationKey = "duration"
)

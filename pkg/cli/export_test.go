package cli

// Export internal functions for testing
var (
	ReadQuestion   = readQuestion
	Confirm        = confirm
	GetIndexConfig = getIndexConfig
	ProfileOptions = profileOptions
)

package config

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend string, capacity, recall int) *Repository {
	return &Repository{
		backend:  backend,
		capacity: capacity,
		recall:   recall,
	}
}

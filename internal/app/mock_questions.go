package app

import "trivia-quiz/internal/domain"

// mockQuestions is the bundled set served when the trivia API cannot be used.
var mockQuestions = []domain.Question{
	{
		Text:               "What is the capital of France?",
		Options:            []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectOptionIndex: 2,
		Explanation:        "Paris is the capital and largest city of France, known for landmarks like the Eiffel Tower and Louvre Museum.",
	},
	{
		Text:               "Which planet is known as the Red Planet?",
		Options:            []string{"Venus", "Mars", "Jupiter", "Saturn"},
		CorrectOptionIndex: 1,
		Explanation:        "Mars is called the Red Planet due to iron oxide (rust) on its surface, giving it a reddish appearance.",
	},
	{
		Text:               "What is the largest mammal in the world?",
		Options:            []string{"African Elephant", "Blue Whale", "Giraffe", "Polar Bear"},
		CorrectOptionIndex: 1,
		Explanation:        "The Blue Whale is the largest animal ever known to have lived on Earth, reaching lengths of up to 100 feet.",
	},
	{
		Text:               "In which year did World War II end?",
		Options:            []string{"1944", "1945", "1946", "1947"},
		CorrectOptionIndex: 1,
		Explanation:        "World War II ended in 1945 with the surrender of Japan in September, following the atomic bombings and Soviet invasion.",
	},
	{
		Text:               "What is the chemical symbol for gold?",
		Options:            []string{"Go", "Gd", "Au", "Ag"},
		CorrectOptionIndex: 2,
		Explanation:        "Au comes from the Latin word 'aurum' meaning gold. It's element 79 on the periodic table.",
	},
	{
		Text:               "Which gas do plants absorb from the atmosphere for photosynthesis?",
		Options:            []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Helium"},
		CorrectOptionIndex: 2,
		Explanation:        "Plants take in carbon dioxide and, using sunlight, convert it into glucose while releasing oxygen.",
	},
}

// MockQuestions returns a copy of the bundled questions with IDs set to their position.
func MockQuestions() []domain.Question {
	out := make([]domain.Question, len(mockQuestions))
	for i, q := range mockQuestions {
		q.ID = i
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

package fetcher

import "math/rand"

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// PickUserAgent выбирает случайный UA из ротации; пустая ротация - встроенный список
func PickUserAgent(rotation []string) string {
	if len(rotation) == 0 {
		rotation = defaultUserAgents
	}
	return rotation[rand.Intn(len(rotation))]
}

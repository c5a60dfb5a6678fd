package fingerprint

// DefaultStopWords are dropped by the local strategy before hashing.
var DefaultStopWords = []string{
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having", "do", "does", "did", "doing", "done",
	"will", "would", "could", "should", "may", "might", "must", "shall", "can",
	"need", "dare", "ought", "used", "to", "of", "in", "for", "on", "with", "at",
	"by", "from", "as", "into", "through", "during", "before", "after", "above",
	"below", "between", "under", "over", "again", "further", "then", "once",
	"and", "but", "or", "nor", "so", "yet", "both", "either", "neither", "not",
	"only", "own", "same", "than", "too", "very", "just", "also", "your", "yours",
	"you", "our", "ours", "we", "they", "their", "theirs", "them", "this", "that",
	"these", "those", "what", "which", "who", "whom", "whose", "how", "when",
	"where", "why", "all", "each", "every", "any", "some", "no", "none", "it",
	"its", "itself", "he", "him", "his", "she", "her", "hers", "i", "me", "my",
	"mine", "us", "there", "here", "if", "else", "because", "while", "until",
	"about", "against", "among", "out", "off", "up", "down", "such", "more",
	"most", "other", "others", "few", "many", "much", "however", "therefore",
	"thus", "whether", "within", "without", "upon", "via", "per", "etc",
}

package text

// DefaultBlockedWords are matched as lowercase substrings.
var DefaultBlockedWords = []string{
	"хуй", "пизд", "ебать", "блядь", "сука", "гандон", "дроч", "мудак",
	"шлюха", "шалава", "проститутка", "залупа", "жопа", "член", "петух",
	"нац", "нацист", "холокост", "порно", "секс", "трахать",
}

// obfuscationPatterns catch the blocked stems spelled with look-alike Latin letters or digits.
var obfuscationPatterns = []string{
	`[хxХX][уyУY][йiIЙ]`,
	`[пpП][иiI][з3zZ][дdD]`,
	`[eеЕE][бbB][aаА][тtT]`,
	`[cсС][уyY][кkK][aаА]`,
}

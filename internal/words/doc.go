// Package words turns page text into word-frequency tables.
//
// The analyzer lowercases its input, strips everything that is not an ASCII
// letter or space, splits the remainder into words, removes stopwords, and
// counts what is left. It holds no mutable state after construction, so a
// single analyzer is shared safely by every crawl worker.
package words

package inspector

// Similarity exposes similarity to the external test package.
var Similarity = similarity

package app

// Codec at-rest encryption of message bodies, implemented by encrypt.AESCodec
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

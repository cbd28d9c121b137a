//go:build ignore

// generate_hash.go — утилита для генерации Argon2id хеша пароля админа.
// Запуск: go run scripts/generate_hash.go -password ваш_пароль
//
// Результат вставьте в .env как ADMIN_PASSWORD_HASH.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"

	"serotonyl.ru/slot-engine/internal/features/admin"
)

func main() {
	password := flag.String("password", "", "пароль администратора")
	memory := flag.Uint("m", uint(admin.DefaultArgon2Params.Memory), "память, KiB")
	iterations := flag.Uint("t", uint(admin.DefaultArgon2Params.Iterations), "число итераций")
	parallelism := flag.Uint("p", uint(admin.DefaultArgon2Params.Parallelism), "параллелизм")
	flag.Parse()

	if *password == "" && flag.NArg() > 0 {
		*password = flag.Arg(0)
	}
	if *password == "" {
		fmt.Println("Использование: go run scripts/generate_hash.go -password <пароль>")
		os.Exit(1)
	}

	// Случайная соль 16 байт
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		fmt.Printf("Ошибка генерации соли: %v\n", err)
		os.Exit(1)
	}

	params := admin.DefaultArgon2Params
	params.Memory = uint32(*memory)
	params.Iterations = uint32(*iterations)
	params.Parallelism = uint8(*parallelism)

	fmt.Println("Хеш пароля (вставьте в .env как ADMIN_PASSWORD_HASH):")
	fmt.Println(admin.HashPassword(*password, salt, params))
}

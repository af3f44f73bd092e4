//go:build ignore

// build_link fetches Ableton Link into third_party/link and builds the
// abl_link C extension that link.go links against. Run it with
// `go generate -tags link ./source` before building with `-tags link`.
package main

import (
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const linkRepo = "https://github.com/Ableton/link.git"

func run(dir string, name string, args ...string) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Fatalf("%s %v failed: %v", name, args, err)
	}
}

func main() {
	// Get the directory where this source file is located
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(filename), "..")
	linkDir := filepath.Join(root, "third_party", "link")
	buildDir := filepath.Join(linkDir, "build")

	if _, err := os.Stat(filepath.Join(linkDir, "CMakeLists.txt")); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(linkDir), 0o755); err != nil {
			log.Fatalf("Failed to create third_party: %v", err)
		}
		run(root, "git", "clone", "--depth", "1", "--recursive", linkRepo, linkDir)
	}

	run(root, "cmake", "-S", linkDir, "-B", buildDir, "-DCMAKE_BUILD_TYPE=Release")
	run(root, "cmake", "--build", buildDir, "--target", "abl_link", "--config", "Release")

	if _, err := os.Stat(filepath.Join(buildDir, "libabl_link.a")); os.IsNotExist(err) {
		log.Fatalf("Build finished but %s is missing", filepath.Join(buildDir, "libabl_link.a"))
	}
	log.Printf("Ableton Link built in %s", buildDir)
}

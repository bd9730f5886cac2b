package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("PINECONE_API_KEY", "pinecone-key")
	t.Setenv("VECTOR_STORE_TYPE", "pinecone")
	t.Setenv("PROMPTS_FILE", filepath.Join(t.TempDir(), "prompts.yaml"))
}

func TestParse_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := parse("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLMCfg.Url != "https://api.groq.com/openai/v1" {
		t.Errorf("unexpected LLM url %q", cfg.LLMCfg.Url)
	}
	if cfg.LLMCfg.Token != "groq-key" {
		t.Errorf("LLM token should default to GROQ_API_KEY, got %q", cfg.LLMCfg.Token)
	}
	if cfg.VectorStoreCfg.Pinecone.Token != "pinecone-key" {
		t.Errorf("pinecone token should default to PINECONE_API_KEY, got %q", cfg.VectorStoreCfg.Pinecone.Token)
	}
	if cfg.VectorStoreCfg.IndexName != "medical-chatbot" {
		t.Errorf("unexpected index name %q", cfg.VectorStoreCfg.IndexName)
	}
	if cfg.EmbeddingCfg.Dimension != 384 {
		t.Errorf("unexpected dimension %d", cfg.EmbeddingCfg.Dimension)
	}
	if cfg.IngestCfg.ChunkSize != 500 || cfg.IngestCfg.ChunkOverlap != 20 {
		t.Errorf("unexpected chunking %d/%d", cfg.IngestCfg.ChunkSize, cfg.IngestCfg.ChunkOverlap)
	}
	if cfg.Prompts.System != DefaultPrompts().System {
		t.Errorf("expected default system prompt")
	}
	if cfg.Environment != "local" {
		t.Errorf("unexpected environment %q", cfg.Environment)
	}
}

func TestParse_MissingLLMKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GROQ_API_KEY", "")

	if _, err := parse("local"); err == nil {
		t.Fatal("expected error for missing GROQ_API_KEY")
	}
}

func TestParse_MissingPineconeKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PINECONE_API_KEY", "")

	_, err := parse("local")
	if err == nil {
		t.Fatal("expected error for missing PINECONE_API_KEY")
	}
	if !strings.Contains(err.Error(), "PINECONE_API_KEY") {
		t.Errorf("error should name the missing variable, got %v", err)
	}
}

func TestParse_ChromemWithoutPineconeKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PINECONE_API_KEY", "")
	t.Setenv("VECTOR_STORE_TYPE", "chromem")

	if _, err := parse("local"); err != nil {
		t.Fatalf("chromem must not require a pinecone key: %v", err)
	}
}

func TestParse_InvalidOverlap(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("INGEST_CHUNK_SIZE", "100")
	t.Setenv("INGEST_CHUNK_OVERLAP", "100")

	if _, err := parse("local"); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestParse_RequestTimeoutAboveLLMTimeout(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REQUEST_TIMEOUT", "30s")
	t.Setenv("LLM_TIMEOUT", "30s")

	_, err := parse("local")
	if err == nil {
		t.Fatal("expected error when REQUEST_TIMEOUT does not exceed LLM_TIMEOUT")
	}
	if !strings.Contains(err.Error(), "REQUEST_TIMEOUT") {
		t.Errorf("error = %v, want it to name REQUEST_TIMEOUT", err)
	}

	t.Setenv("REQUEST_TIMEOUT", "31s")
	if _, err := parse("local"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		p, err := LoadPrompts(filepath.Join(dir, "absent.yaml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *p != DefaultPrompts() {
			t.Errorf("expected default prompts")
		}
	})

	t.Run("partial override", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		if err := os.WriteFile(path, []byte("system: \"Answer from {context} only.\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		p, err := LoadPrompts(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.System != "Answer from {context} only." {
			t.Errorf("system prompt not overridden: %q", p.System)
		}
		if p.Contextualize != DefaultPrompts().Contextualize {
			t.Errorf("contextualize prompt should keep its default")
		}
	})

	t.Run("missing placeholder", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("system: \"No context here.\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPrompts(path); err == nil {
			t.Fatal("expected error for system prompt without placeholder")
		}
	})
}

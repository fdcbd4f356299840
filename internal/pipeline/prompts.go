package pipeline

const understandingPrompt = `You are analyzing an uploaded codebase. From the provided files, produce a JSON object with these fields:
"purpose" (one sentence), "users" (who this is for), "features" (array of strings), "stack" (array of strings), "architecture" (short description), "confidence" (0..1).
Respond with JSON only.`

const featuresPrompt = `You are auditing a codebase for completeness. Given the project understanding and the static diagnosis, produce a JSON object:
{"features": [{"name", "status" ("complete"|"partial"|"missing"), "priority" ("critical"|"high"|"medium"|"low"), "effort", "dependencies": [..], "affectedFiles": [..]}],
 "criticalPath": [feature names in build order],
 "readinessScore": 0..100}
Respond with JSON only.`

const completionPrompt = `You implement one missing feature of a codebase. Emit every file needed, each introduced by a marker line "FILE: <path>" followed by a fenced code block containing the full file content. Do not emit anything outside FILE sections except brief notes.`

const packagingPrompt = `You produce deployment files for a codebase. Given its stack, emit a Dockerfile, a docker-compose.yml if services are needed, and a .env.example. Each file is introduced by a marker line "FILE: <path>" followed by a fenced code block containing the full file content.`

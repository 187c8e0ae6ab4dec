// Package media pulls the audio track out of uploaded video with ffmpeg and
// measures media duration with ffprobe. Inputs are fetched from the object
// store (or any http(s) URL) into a scratch directory under the work dir;
// extracted mp3s are uploaded back to the store.
package media

/*
Package status reports what deploy runs do.

	            +-------------+
	            |   Deploy    |
	            |    run      |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	|  Tracker  |           | Output  |
	| (files)   |           | (lines) |
	+-----------+           +---------+

🎯 Purpose:
- Output is the line channel a run writes "Deploying file ... [OK]" style messages to
- Formatter owns the wording of those messages
- Tracker keeps the per-file upload state of every run of a process and counts progress

🔍 Example:

	out := status.NewWriterOutput(os.Stdout)
	f := status.NewDefaultFormatter()

	out.Append(f.Deploying("/src/a.txt", "/a.txt (prod)") + " ")
	out.AppendLine(f.Result(nil))

	tracker := status.NewTracker(f)
	tracker.TrackFile(ctx, status.FileInfo{Remote: "/a.txt", Target: "prod", Status: status.StatusUploaded})
	for _, info := range tracker.ListFiles() {
		fmt.Println(status.FormatFileLine(info))
	}
*/
package status

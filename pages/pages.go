package pages

var Landing = `
<!DOCTYPE html>
<html>
<head>
    <title>tokgrab</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
        }
        code {
            background: #f2f2f2;
            padding: 2px 4px;
        }
    </style>
</head>
<body>
    <h1>tokgrab</h1>
    <p>Preview and download TikTok videos, slideshows and sounds.</p>
    <ul>
        <li><code>POST /api/tiktok/info {"url": "..."}</code></li>
        <li><code>GET /api/tiktok/download/video|audio|image?url=...&amp;imageIndex=</code></li>
        <li><code>POST /api/tiktok/batch {"urls": [...]}</code></li>
        <li><code>POST /api/tiktok/metadata/batch {"urls": [...]}</code></li>
        <li><code>POST /api/tiktok/search {"query": "@user", "limit": 15}</code></li>
        <li><code>POST /api/tiktok/search/keyword {"keyword": "...", "type": "video", "page": 1}</code></li>
        <li><code>GET /api/tiktok/user/:username/stats</code></li>
        <li><code>GET /api/tiktok/user/:username/latest</code></li>
    </ul>
</body>
</html>`
